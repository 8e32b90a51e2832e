package dumper

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/il2corn/il2corn/go/il2cpp/metadata"
	"github.com/il2corn/il2corn/go/il2cpp/search"
	"github.com/il2corn/il2corn/go/loader"
	"github.com/il2corn/il2corn/go/logflags"
	"github.com/il2corn/il2corn/go/models"
)

// Dumper joins a native binary with its global metadata.
type Dumper struct {
	bin    models.BinaryFile
	meta   *metadata.Metadata
	config *models.Config
	log    *logrus.Entry

	methodIDs []uuid.UUID
}

func New(bin models.BinaryFile, meta *metadata.Metadata, config *models.Config) *Dumper {
	if config == nil {
		config = &models.Config{}
	}
	return &Dumper{bin: bin, meta: meta, config: config, log: logflags.DumperLogger()}
}

// Open loads both inputs from disk.
func Open(binaryPath, metadataPath string, config *models.Config) (*Dumper, error) {
	log := logflags.DumperLogger()
	log.Infof("loading binary from %s", binaryPath)
	bin, err := loader.LoadFile(binaryPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", binaryPath)
	}
	log.Infof("loading metadata from %s", metadataPath)
	meta, err := metadata.LoadFile(metadataPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", metadataPath)
	}
	return New(bin, meta, config), nil
}

func (d *Dumper) Binary() models.BinaryFile    { return d.bin }
func (d *Dumper) Metadata() *metadata.Metadata { return d.meta }

// Locate runs the registration search. A miss is not an error.
func (d *Dumper) Locate() models.Registrations {
	l := search.NewLocator(d.bin, len(d.meta.TypeDefinitions), len(d.meta.Methods))
	if d.config.ManualCodeRegistration != 0 && d.config.ManualMetadataRegistration != 0 {
		l.SetManual(models.Address(d.config.ManualCodeRegistration), models.Address(d.config.ManualMetadataRegistration))
	} else if d.config.SkipSearch {
		return models.Registrations{}
	}
	res, ok := l.Find()
	if !ok {
		return models.Registrations{}
	}
	return res.Registrations()
}

func (d *Dumper) Dump() (*models.DumpResults, error) {
	d.log.Info("starting dump")
	if logflags.Dumper() {
		for _, img := range d.meta.Images {
			d.log.Debugf("image %s: %d types from %d", d.meta.StringOr(img.NameIndex, "<unknown>"), img.TypeCount, img.TypeStart)
		}
	}
	res := &models.DumpResults{
		Timestamp:       time.Now().UTC(),
		MetadataVersion: d.meta.Version,
		Registrations:   d.Locate(),
	}
	if v, ok := d.RuntimeVersion(); ok {
		res.RuntimeVersion = &v
	}
	res.Methods = d.methods()
	res.Types = d.types()
	res.StringLiterals = d.stringLiterals()

	res.Statistics = models.DumpStatistics{
		TotalTypes:      len(res.Types),
		TotalMethods:    len(res.Methods),
		TotalStrings:    len(res.StringLiterals),
		AssembliesCount: len(d.meta.Assemblies),
	}
	for i := range res.Types {
		res.Statistics.TotalFields += len(res.Types[i].Fields)
	}
	d.log.WithFields(logrus.Fields{
		"types":   res.Statistics.TotalTypes,
		"methods": res.Statistics.TotalMethods,
		"fields":  res.Statistics.TotalFields,
		"strings": res.Statistics.TotalStrings,
	}).Info("dump complete")
	return res, nil
}

func (d *Dumper) stringLiterals() []models.StringLiteral {
	ret := make([]models.StringLiteral, 0, len(d.meta.StringLiterals))
	for i := range d.meta.StringLiterals {
		s, ok := d.meta.StringLiteral(i)
		if !ok {
			d.log.Debugf("skipping undecodable string literal %d", i)
			continue
		}
		ret = append(ret, models.StringLiteral{Value: s, Index: i})
	}
	return ret
}

package logflags

import (
	"errors"
	"io"
	"io/ioutil"
	"log"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var loader = false
var metadata = false
var locator = false
var dumper = false

var output io.Writer = os.Stderr

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Out = output
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// Loader returns true if the binary format parsers should log.
func Loader() bool {
	return loader
}

func LoaderLogger() *logrus.Entry {
	return makeLogger(loader, logrus.Fields{"layer": "loader"})
}

// Metadata returns true if the metadata decoder should log table counts and
// truncated tables.
func Metadata() bool {
	return metadata
}

func MetadataLogger() *logrus.Entry {
	return makeLogger(metadata, logrus.Fields{"layer": "metadata"})
}

// Locator returns true if registration search strategies should log.
func Locator() bool {
	return locator
}

func LocatorLogger() *logrus.Entry {
	return makeLogger(locator, logrus.Fields{"layer": "locator"})
}

func Dumper() bool {
	return dumper
}

func DumperLogger() *logrus.Entry {
	return makeLogger(dumper, logrus.Fields{"layer": "dumper"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets logging flags based on the contents of logstr, a comma separated
// list of layers. "all" enables every layer.
func Setup(logFlag bool, logstr string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "dumper,locator"
	}
	for _, layer := range strings.Split(logstr, ",") {
		switch strings.TrimSpace(layer) {
		case "loader":
			loader = true
		case "metadata":
			metadata = true
		case "locator":
			locator = true
		case "dumper":
			dumper = true
		case "all":
			loader, metadata, locator, dumper = true, true, true, true
		}
	}
	return nil
}

// SetOutput redirects every logger created after the call.
func SetOutput(w io.Writer) {
	output = w
}

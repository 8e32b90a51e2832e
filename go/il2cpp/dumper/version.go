package dumper

import "regexp"

// engine version strings such as 2021.3.15f1 or 5.6.7p2
var runtimeVersionRe = regexp.MustCompile(`\b(?:20[1-9][0-9]|[4-6])\.[0-9]{1,2}\.[0-9]{1,3}[abfpx][0-9]{1,3}\b`)

// RuntimeVersion returns the first engine version string found in the
// binary's data sections.
func (d *Dumper) RuntimeVersion() (string, bool) {
	for _, s := range d.bin.DataSections() {
		data, ok := d.bin.SectionData(s)
		if !ok {
			continue
		}
		if m := runtimeVersionRe.Find(data); m != nil {
			d.log.Debugf("runtime version %s in %s", m, s.Name)
			return string(m), true
		}
	}
	return "", false
}

package compare

import (
	"regexp"

	"github.com/opendpm/dbdiff/dbtable"
)

const DefaultFilterString = ".*"

// filterNames keeps the table names matching the POSIX regular
// expression. The default filter passes everything through untouched.
func filterNames(filter string, names []dbtable.Name) ([]dbtable.Name, error) {
	if filter == DefaultFilterString || filter == "" {
		return names, nil
	}
	re, err := regexp.CompilePOSIX(filter)
	if err != nil {
		return nil, err
	}
	var ret []dbtable.Name
	for _, n := range names {
		if re.MatchString(string(n)) {
			ret = append(ret, n)
		}
	}
	return ret, nil
}

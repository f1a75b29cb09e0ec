package source

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Amount is a money value as the marketplace APIs serialize it: sometimes a
// JSON number, sometimes a string, sometimes a localized string like
// "1 234,56". Unparseable values decode to zero rather than failing the
// record, matching how the feeds treat absent amounts.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*a = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			*a = 0
			return nil
		}
		s = str
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*a = 0
		return nil
	}
	*a = Amount(f)
	return nil
}

// Float returns the amount as a plain float64.
func (a Amount) Float() float64 { return float64(a) }

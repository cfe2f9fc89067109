package dates

import (
	"bytes"
	"encoding/json"
	"time"
)

// Flexible is a time.Time that unmarshals from any representation Convert
// understands and marshals as an ISO-8601 string with millisecond
// precision, matching what the other clients write.
type Flexible struct {
	time.Time
}

// At wraps a time.Time.
func At(t time.Time) Flexible { return Flexible{Time: t} }

// AtPtr wraps a time.Time as an optional field value.
func AtPtr(t time.Time) *Flexible {
	f := At(t)
	return &f
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func (f Flexible) MarshalJSON() ([]byte, error) {
	if f.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(f.UTC().Format(isoMillis))
}

func (f *Flexible) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		f.Time = time.Time{}
		return nil
	}
	// Unparseable values decode to now rather than failing the document.
	f.Time = ConvertOrNow(raw, nil)
	return nil
}

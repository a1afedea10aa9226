package meters

import "github.com/serebryakov7/wmbusmeters/internal/driver"

// All lists every built-in driver declaration.
var All = []driver.Info{
	Iperl,
	Multical21,
	Omnipower,
	MKRadio3,
	Lansenth,
	Apator162,
}

// RegisterAll registers every built-in driver into reg, failing fast on
// the first registration conflict.
func RegisterAll(reg *driver.Registry) error {
	for _, info := range All {
		if err := reg.Register(info); err != nil {
			return err
		}
	}
	return nil
}

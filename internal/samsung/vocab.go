package samsung

import "fmt"

// OptionCode pairs a display option with its protocol code.
type OptionCode struct {
	Name string
	Code int64
}

// Vocabulary is a fixed, ordered option set for a select-like entity.
// Options and codes map one to one.
type Vocabulary struct {
	name    string
	options []OptionCode
	byName  map[string]int64
	byCode  map[int64]string
}

// NewVocabulary builds a vocabulary. It panics on duplicate names or codes
// since vocabularies are package-level protocol tables.
func NewVocabulary(name string, options ...OptionCode) *Vocabulary {
	v := &Vocabulary{
		name:    name,
		options: options,
		byName:  make(map[string]int64, len(options)),
		byCode:  make(map[int64]string, len(options)),
	}
	for _, o := range options {
		if _, dup := v.byName[o.Name]; dup {
			panic(fmt.Sprintf("vocabulary %s: duplicate option %q", name, o.Name))
		}
		if _, dup := v.byCode[o.Code]; dup {
			panic(fmt.Sprintf("vocabulary %s: duplicate code %d", name, o.Code))
		}
		v.byName[o.Name] = o.Code
		v.byCode[o.Code] = o.Name
	}
	return v
}

// Code returns the protocol code for an option.
func (v *Vocabulary) Code(option string) (int64, error) {
	code, ok := v.byName[option]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a %s option", ErrInvalidOption, option, v.name)
	}
	return code, nil
}

// Option returns the display option for a protocol code.
func (v *Vocabulary) Option(code int64) (string, error) {
	name, ok := v.byCode[code]
	if !ok {
		return "", fmt.Errorf("%w: code %d is not a %s option", ErrInvalidOption, code, v.name)
	}
	return name, nil
}

// Options returns the option names in protocol order.
func (v *Vocabulary) Options() []string {
	out := make([]string, len(v.options))
	for i, o := range v.options {
		out[i] = o.Name
	}
	return out
}

// Name returns the vocabulary name.
func (v *Vocabulary) Name() string { return v.name }

// Protocol vocabularies.
var (
	ModeVocabulary = NewVocabulary("mode",
		OptionCode{"Auto", 0},
		OptionCode{"Cool", 1},
		OptionCode{"Dry", 2},
		OptionCode{"Fan", 3},
		OptionCode{"Heat", 4},
	)

	WaterHeaterModeVocabulary = NewVocabulary("water heater mode",
		OptionCode{"Eco", 0},
		OptionCode{"Standard", 1},
		OptionCode{"Power", 2},
		OptionCode{"Force", 3},
	)

	// ClimateModeVocabulary uses the climate entity's lower-case names.
	// "off" is not a protocol mode; it maps to power off.
	ClimateModeVocabulary = NewVocabulary("climate mode",
		OptionCode{"auto", 0},
		OptionCode{"cool", 1},
		OptionCode{"dry", 2},
		OptionCode{"fan_only", 3},
		OptionCode{"heat", 4},
	)

	// FanModeVocabulary holds the codes accepted by ENUM_in_fan_mode.
	FanModeVocabulary = NewVocabulary("fan mode",
		OptionCode{"auto", 0},
		OptionCode{"low", 1},
		OptionCode{"medium", 2},
		OptionCode{"high", 3},
		OptionCode{"turbo", 4},
	)
)

// ClimateModeOff is the climate mode reported while the unit is powered off.
const ClimateModeOff = "off"

// fanModeFromReal maps ENUM_in_fan_mode_real, which reports what the unit is
// actually doing, onto the writable fan modes.
func fanModeFromReal(code int64) string {
	switch code {
	case 1:
		return "low"
	case 2:
		return "medium"
	case 3, 4:
		return "high"
	case 10, 11, 12, 13, 14, 15:
		return "auto"
	case 254:
		return ClimateModeOff
	default:
		return ""
	}
}

// Swing modes.
const (
	SwingOff        = "off"
	SwingVertical   = "vertical"
	SwingHorizontal = "horizontal"
	SwingBoth       = "both"
)

func swingName(vertical, horizontal bool) string {
	switch {
	case vertical && horizontal:
		return SwingBoth
	case vertical:
		return SwingVertical
	case horizontal:
		return SwingHorizontal
	default:
		return SwingOff
	}
}

package patient

// Choice is one selectable option of a categorical form field.
type Choice struct {
	Label string `json:"label"`
	Code  int    `json:"code"`
}

// choiceTable is a small bidirectional label/code lookup.
type choiceTable []Choice

func (t choiceTable) label(code int) (string, bool) {
	for _, c := range t {
		if c.Code == code {
			return c.Label, true
		}
	}
	return "", false
}

func (t choiceTable) code(label string) (int, bool) {
	for _, c := range t {
		if c.Label == label {
			return c.Code, true
		}
	}
	return 0, false
}

// Sex is the biological sex code.
type Sex int

const (
	Female Sex = 0
	Male   Sex = 1
)

var sexChoices = choiceTable{{"Male", 1}, {"Female", 0}}

func (s Sex) Valid() bool {
	_, ok := sexChoices.label(int(s))
	return ok
}

func (s Sex) String() string {
	l, _ := sexChoices.label(int(s))
	return l
}

// ParseSex resolves a display label to its code.
func ParseSex(label string) (Sex, bool) {
	c, ok := sexChoices.code(label)
	return Sex(c), ok
}

// ChestPainType is the 1-4 chest pain category.
type ChestPainType int

const (
	TypicalAngina  ChestPainType = 1
	AtypicalAngina ChestPainType = 2
	NonAnginalPain ChestPainType = 3
	Asymptomatic   ChestPainType = 4
)

var chestPainChoices = choiceTable{
	{"Typical angina", 1},
	{"Atypical angina", 2},
	{"Non-anginal pain", 3},
	{"Asymptomatic", 4},
}

func (c ChestPainType) Valid() bool {
	_, ok := chestPainChoices.label(int(c))
	return ok
}

func (c ChestPainType) String() string {
	l, _ := chestPainChoices.label(int(c))
	return l
}

// ParseChestPainType resolves a display label to its code.
func ParseChestPainType(label string) (ChestPainType, bool) {
	c, ok := chestPainChoices.code(label)
	return ChestPainType(c), ok
}

// RestingECG is the resting electrocardiogram result.
type RestingECG int

const (
	ECGNormal      RestingECG = 0
	ECGSTTAbnormal RestingECG = 1
	ECGLVH         RestingECG = 2
)

var restingECGChoices = choiceTable{
	{"Normal", 0},
	{"ST-T wave abnormality", 1},
	{"Left ventricular hypertrophy", 2},
}

func (e RestingECG) Valid() bool {
	_, ok := restingECGChoices.label(int(e))
	return ok
}

func (e RestingECG) String() string {
	l, _ := restingECGChoices.label(int(e))
	return l
}

// ParseRestingECG resolves a display label to its code.
func ParseRestingECG(label string) (RestingECG, bool) {
	c, ok := restingECGChoices.code(label)
	return RestingECG(c), ok
}

// STSlope is the slope of the peak exercise ST segment.
type STSlope int

const (
	Upsloping   STSlope = 1
	Flat        STSlope = 2
	Downsloping STSlope = 3
)

var stSlopeChoices = choiceTable{{"Upsloping", 1}, {"Flat", 2}, {"Downsloping", 3}}

func (s STSlope) Valid() bool {
	_, ok := stSlopeChoices.label(int(s))
	return ok
}

func (s STSlope) String() string {
	l, _ := stSlopeChoices.label(int(s))
	return l
}

// ParseSTSlope resolves a display label to its code.
func ParseSTSlope(label string) (STSlope, bool) {
	c, ok := stSlopeChoices.code(label)
	return STSlope(c), ok
}

// YesNo is a binary flag. Fasting blood sugar displays it as False/True.
type YesNo int

const (
	No  YesNo = 0
	Yes YesNo = 1
)

var (
	yesNoChoices     = choiceTable{{"No", 0}, {"Yes", 1}}
	trueFalseChoices = choiceTable{{"False", 0}, {"True", 1}}
)

func (y YesNo) Valid() bool {
	return y == No || y == Yes
}

func (y YesNo) String() string {
	l, _ := yesNoChoices.label(int(y))
	return l
}

// ParseYesNo accepts both the No/Yes and False/True label sets.
func ParseYesNo(label string) (YesNo, bool) {
	if c, ok := yesNoChoices.code(label); ok {
		return YesNo(c), true
	}
	c, ok := trueFalseChoices.code(label)
	return YesNo(c), ok
}

// Choices returns the form options of a categorical column, or nil for
// numeric columns.
func Choices(column string) []Choice {
	var t choiceTable
	switch column {
	case ColSex:
		t = sexChoices
	case ColChestPainType:
		t = chestPainChoices
	case ColFastingBloodSugar:
		t = trueFalseChoices
	case ColRestingECG:
		t = restingECGChoices
	case ColExerciseAngina, ColSmoke:
		t = yesNoChoices
	case ColSTSlope:
		t = stSlopeChoices
	default:
		return nil
	}
	out := make([]Choice, len(t))
	copy(out, t)
	return out
}

package validate

// Field identifies one input of the authentication forms.
type Field int

const (
	FullName Field = iota
	Email
	MobileNumber
	Password
	ConfirmPassword

	fieldCount
)

var fieldNames = [fieldCount]string{
	FullName:        "fullName",
	Email:           "email",
	MobileNumber:    "mobileNumber",
	Password:        "password",
	ConfirmPassword: "confirmPassword",
}

// String returns the form input name of f.
func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return fieldNames[f]
}

// ParseField maps a form input name back to its Field.
func ParseField(name string) (Field, bool) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return 0, false
}

// AllFields lists every field in display order.
func AllFields() []Field {
	out := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		out = append(out, f)
	}
	return out
}

// Errors holds at most one message per field. The zero value has no errors.
type Errors struct {
	msgs [fieldCount]string
}

// Get returns the message recorded for f, or "".
func (e Errors) Get(f Field) string {
	if f < 0 || f >= fieldCount {
		return ""
	}
	return e.msgs[f]
}

// Has reports whether f currently has a message.
func (e Errors) Has(f Field) bool {
	return e.Get(f) != ""
}

// Set records msg for f. An empty msg clears it.
func (e *Errors) Set(f Field, msg string) {
	if f < 0 || f >= fieldCount {
		return
	}
	e.msgs[f] = msg
}

// Clear removes the message for f and leaves every other field untouched.
func (e *Errors) Clear(f Field) {
	e.Set(f, "")
}

// Empty reports whether no field has a message.
func (e Errors) Empty() bool {
	for _, m := range e.msgs {
		if m != "" {
			return false
		}
	}
	return true
}

// Fields returns the fields that currently carry a message.
func (e Errors) Fields() []Field {
	var out []Field
	for f := Field(0); f < fieldCount; f++ {
		if e.msgs[f] != "" {
			out = append(out, f)
		}
	}
	return out
}

// Map renders the errors keyed by input name, for templates and JSON.
func (e Errors) Map() map[string]string {
	out := make(map[string]string)
	for f := Field(0); f < fieldCount; f++ {
		if e.msgs[f] != "" {
			out[f.String()] = e.msgs[f]
		}
	}
	return out
}

package validate

import (
	"strings"
	"testing"
)

func validRegistration() RegistrationForm {
	return RegistrationForm{
		FullName:        "Jo",
		Email:           "a@b.com",
		MobileNumber:    "1234567890",
		Password:        "Abcdefg1",
		ConfirmPassword: "Abcdefg1",
	}
}

func TestRegistrationAcceptsValidForm(t *testing.T) {
	errs := Registration(validRegistration())
	if !errs.Empty() {
		t.Fatalf("expected no errors, got %v", errs.Map())
	}
}

func TestRegistrationFieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegistrationForm)
		field  Field
		want   string
	}{
		{"empty name", func(f *RegistrationForm) { f.FullName = "" }, FullName, "Full name is required"},
		{"blank name", func(f *RegistrationForm) { f.FullName = "   " }, FullName, "Full name is required"},
		{"short name", func(f *RegistrationForm) { f.FullName = " J " }, FullName, "Full name must be at least 2 characters"},
		{"empty email", func(f *RegistrationForm) { f.Email = " " }, Email, "Email is required"},
		{"no at sign", func(f *RegistrationForm) { f.Email = "a.b.com" }, Email, "Please enter a valid email address"},
		{"no dot after at", func(f *RegistrationForm) { f.Email = "a@bcom" }, Email, "Please enter a valid email address"},
		{"space in email", func(f *RegistrationForm) { f.Email = "a b@c.com" }, Email, "Please enter a valid email address"},
		{"no-break space in email", func(f *RegistrationForm) { f.Email = "a\u00a0x@b.com" }, Email, "Please enter a valid email address"},
		{"ideographic space in domain", func(f *RegistrationForm) { f.Email = "a@b\u3000c.com" }, Email, "Please enter a valid email address"},
		{"empty mobile", func(f *RegistrationForm) { f.MobileNumber = "" }, MobileNumber, "Mobile number is required"},
		{"short mobile", func(f *RegistrationForm) { f.MobileNumber = "12345" }, MobileNumber, "Please enter a valid mobile number"},
		{"letters in mobile", func(f *RegistrationForm) { f.MobileNumber = "12345abcde" }, MobileNumber, "Please enter a valid mobile number"},
		{"empty password", func(f *RegistrationForm) { f.Password = ""; f.ConfirmPassword = "" }, Password, "Password is required"},
		{"mismatch", func(f *RegistrationForm) { f.ConfirmPassword = "Abcdefg2" }, ConfirmPassword, "Passwords do not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validRegistration()
			tt.mutate(&form)
			errs := Registration(form)
			if got := errs.Get(tt.field); got != tt.want {
				t.Fatalf("%s: got %q, want %q", tt.field, got, tt.want)
			}
			if len(errs.Fields()) != 1 {
				t.Fatalf("expected exactly one failing field, got %v", errs.Map())
			}
		})
	}
}

func TestMobileAcceptsFormattedNumbers(t *testing.T) {
	for _, m := range []string{"+63 912 345 6789", "(02) 8123-4567", "+1-555-123-4567", "123\u00a0456 7890", "0912\u2009345\u20096789"} {
		form := validRegistration()
		form.MobileNumber = m
		if errs := Registration(form); errs.Has(MobileNumber) {
			t.Fatalf("%q rejected: %s", m, errs.Get(MobileNumber))
		}
	}
}

func TestShortPasswordAlwaysFailsLength(t *testing.T) {
	for _, pw := range []string{"a", "Ab1", "abcdefg", "ABCDEF1", "Abcdef1"} {
		form := RegistrationForm{Password: pw, ConfirmPassword: "different"}
		errs := Registration(form)
		if got := errs.Get(Password); got != "Password must be at least 8 characters" {
			t.Fatalf("%q: got %q", pw, got)
		}
	}
}

func TestPasswordLengthCountsUTF16Units(t *testing.T) {
	tests := []struct {
		pw   string
		pass bool
	}{
		{"Ab1\U0001F600\U0001F600\U0001F600", true},
		{"Ab1\U0001F600\U0001F600x", true},
		{"Ab1\U0001F600\U0001F600", false},
		{"Ab1\u00e9\u00e9\u00e9\u00e9\u00e9", true},
		{"Ab1\u00e9\u00e9\u00e9\u00e9", false},
	}
	for _, tt := range tests {
		got := PasswordPolicy(tt.pw)
		if tt.pass && got != "" {
			t.Fatalf("%q should pass, got %q", tt.pw, got)
		}
		if !tt.pass && got != "Password must be at least 8 characters" {
			t.Fatalf("%q: got %q", tt.pw, got)
		}
	}
}

func TestIsEmailRejectsUnicodeWhitespace(t *testing.T) {
	for _, e := range []string{"a\u00a0x@b.com", "a@b.c\ufeffom", "a\u2028@b.com", "a\v@b.com"} {
		if IsEmail(e) {
			t.Fatalf("%q accepted", e)
		}
	}
	if !IsEmail("ana.reyes@example.ph") {
		t.Fatal("plain address rejected")
	}
}

func TestPasswordCompositionRule(t *testing.T) {
	const want = "Password must contain uppercase, lowercase, and number"
	for _, pw := range []string{"abcdefgh1", "ABCDEFGH1", "Abcdefghi", "12345678", "1bcdefgH"} {
		form := validRegistration()
		form.Password = pw
		form.ConfirmPassword = pw
		got := Registration(form).Get(Password)
		if pw == "1bcdefgH" {
			if got != "" {
				t.Fatalf("%q should pass, got %q", pw, got)
			}
			continue
		}
		if got != want {
			t.Fatalf("%q: got %q, want %q", pw, got, want)
		}
	}
}

func TestConfirmMismatchIndependentOfOtherFields(t *testing.T) {
	errs := Registration(RegistrationForm{Password: "x", ConfirmPassword: "y"})
	if got := errs.Get(ConfirmPassword); got != "Passwords do not match" {
		t.Fatalf("confirm: got %q", got)
	}
	if len(errs.Fields()) != 5 {
		t.Fatalf("expected all five fields to fail, got %v", errs.Map())
	}
}

func TestLoginChecksPresenceOnly(t *testing.T) {
	errs := Login(LoginForm{Email: "not-an-email", Password: ""})
	if errs.Has(Email) {
		t.Fatalf("login must not check email format, got %q", errs.Get(Email))
	}
	if got := errs.Get(Password); got != "Password is required" {
		t.Fatalf("password: got %q", got)
	}

	errs = Login(LoginForm{Email: "  ", Password: "x"})
	if got := errs.Get(Email); got != "Email is required" {
		t.Fatalf("email: got %q", got)
	}
	if errs.Has(Password) {
		t.Fatal("short password must pass login validation")
	}
}

func TestPasswordResetRules(t *testing.T) {
	errs := PasswordReset(PasswordResetForm{Password: "short", ConfirmPassword: "short"})
	if got := errs.Get(Password); got != "Password must be at least 8 characters" {
		t.Fatalf("got %q", got)
	}
	if errs.Has(ConfirmPassword) {
		t.Fatal("matching confirmation must not fail")
	}

	errs = PasswordReset(PasswordResetForm{Password: "Abcdefg1", ConfirmPassword: "Abcdefg1"})
	if !errs.Empty() {
		t.Fatalf("expected valid, got %v", errs.Map())
	}
}

func TestPasswordPolicy(t *testing.T) {
	if msg := PasswordPolicy("Abcdefg1"); msg != "" {
		t.Fatalf("unexpected policy failure: %s", msg)
	}
	if msg := PasswordPolicy("abcdefgh"); !strings.Contains(msg, "uppercase") {
		t.Fatalf("unexpected message: %s", msg)
	}
}

func TestErrorsClearOnlyTouchesOneField(t *testing.T) {
	errs := Registration(RegistrationForm{})
	before := errs.Fields()
	errs.Clear(Email)

	if errs.Has(Email) {
		t.Fatal("email should be cleared")
	}
	for _, f := range before {
		if f == Email {
			continue
		}
		if !errs.Has(f) {
			t.Fatalf("%s should still carry its error", f)
		}
	}
}

func TestParseField(t *testing.T) {
	for _, f := range AllFields() {
		got, ok := ParseField(f.String())
		if !ok || got != f {
			t.Fatalf("ParseField(%q) = %v, %v", f.String(), got, ok)
		}
	}
	if _, ok := ParseField("nope"); ok {
		t.Fatal("unknown field must not parse")
	}
}

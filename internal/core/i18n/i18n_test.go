package i18n

import (
	"reflect"
	"testing"
)

// emptyFields returns the dotted names of string fields left blank.
func emptyFields(prefix string, v reflect.Value) []string {
	var out []string
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		name := prefix + v.Type().Field(i).Name
		switch f.Kind() {
		case reflect.Struct:
			out = append(out, emptyFields(name+".", f)...)
		case reflect.String:
			if f.String() == "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func TestLocalesComplete(t *testing.T) {
	for _, lang := range SupportedLanguages {
		t.Run(lang.Code, func(t *testing.T) {
			tr, err := loadTranslations(lang.Code)
			if err != nil {
				t.Fatalf("loadTranslations(%q) error = %v", lang.Code, err)
			}
			if missing := emptyFields("", reflect.ValueOf(*tr)); len(missing) > 0 {
				t.Errorf("missing keys: %v", missing)
			}
		})
	}
}

func TestGetTranslationsFallsBackToEnglish(t *testing.T) {
	if got, want := GetTranslations("xx"), GetTranslations("en"); got != want {
		t.Error("unknown language should fall back to English")
	}
	if GetTranslations("").Status.Processing != "Processing audio..." {
		t.Error("empty language should resolve to English")
	}
	if GetTranslations(" UR ") != GetTranslations("ur") {
		t.Error("language codes should be normalized")
	}
}

func TestFinished(t *testing.T) {
	tr := GetTranslations("en")
	tests := []struct {
		conf float64
		ok   bool
		want string
	}{
		{0.873, true, "Finished! (Confidence: 87%)"},
		{1, true, "Finished! (Confidence: 100%)"},
		{0, false, "Finished!"},
	}
	for _, tt := range tests {
		if got := tr.Finished(tt.conf, tt.ok); got != tt.want {
			t.Errorf("Finished(%v, %v) = %q, want %q", tt.conf, tt.ok, got, tt.want)
		}
	}
}

package i18n

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yml
var localesFS embed.FS

// Translations holds all translation strings organized by section
type Translations struct {
	Status StatusTranslations `yaml:"status"`
	Errors ErrorTranslations  `yaml:"errors"`
	Web    WebTranslations    `yaml:"web"`
	CLI    CLITranslations    `yaml:"cli"`
}

// StatusTranslations are shown at each session transition.
type StatusTranslations struct {
	Uploaded       string `yaml:"uploaded"`
	Processing     string `yaml:"processing"`
	Converting     string `yaml:"converting"`
	LoadingModel   string `yaml:"loading_model"`
	Transcribing   string `yaml:"transcribing"`
	Finished       string `yaml:"finished"` // takes the confidence percentage
	FinishedNoConf string `yaml:"finished_no_conf"`
	Failed         string `yaml:"failed"`
}

type ErrorTranslations struct {
	InvalidInput       string `yaml:"invalid_input"`
	DecodeError        string `yaml:"decode_error"`
	MissingCredential  string `yaml:"missing_credential"`
	BackendUnavailable string `yaml:"backend_unavailable"`
	TranscriptionError string `yaml:"transcription_error"`
	Cancelled          string `yaml:"cancelled"`
	Internal           string `yaml:"internal"`
}

type WebTranslations struct {
	Title      string `yaml:"title"`
	Subtitle   string `yaml:"subtitle"`
	ChooseFile string `yaml:"choose_file"`
	Transcribe string `yaml:"transcribe"`
	Transcript string `yaml:"transcript"`
	Download   string `yaml:"download"`
	Backend    string `yaml:"backend"`
}

type CLITranslations struct {
	Model         string `yaml:"model"`
	Backend       string `yaml:"backend"`
	Elapsed       string `yaml:"elapsed"`
	Saved         string `yaml:"saved"`
	QuitHint      string `yaml:"quit_hint"`
	Downloading   string `yaml:"downloading"`
	Downloaded    string `yaml:"downloaded"`
	NotDownloaded string `yaml:"not_downloaded"`
}

var (
	translationsCache = make(map[string]*Translations)
	cacheMutex        sync.RWMutex
	defaultLang       = "en"
)

// SupportedLanguages returns all available language codes
var SupportedLanguages = []struct {
	Code string
	Name string
}{
	{"en", "English"},
	{"ur", "اردو"},
}

// GetTranslations returns translations for the specified language
func GetTranslations(lang string) *Translations {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = defaultLang
	}

	cacheMutex.RLock()
	if t, ok := translationsCache[lang]; ok {
		cacheMutex.RUnlock()
		return t
	}
	cacheMutex.RUnlock()

	// Load from file
	t, err := loadTranslations(lang)
	if err != nil {
		// Fall back to English
		if lang != defaultLang {
			return GetTranslations(defaultLang)
		}
		// Return empty translations if even English fails
		return &Translations{}
	}

	cacheMutex.Lock()
	translationsCache[lang] = t
	cacheMutex.Unlock()

	return t
}

func loadTranslations(lang string) (*Translations, error) {
	filename := fmt.Sprintf("locales/%s.yml", lang)
	data, err := localesFS.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var t Translations
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// T is a convenience function for getting translations
func T(lang string) *Translations {
	return GetTranslations(lang)
}

// Finished renders the completion status, with the confidence as a whole
// percentage when one is known.
func (t *Translations) Finished(confidence float64, ok bool) string {
	if !ok {
		return t.Status.FinishedNoConf
	}
	return fmt.Sprintf(t.Status.Finished, int(confidence*100+0.5))
}

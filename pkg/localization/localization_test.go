package localization_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/umbralabs/umbra/pkg/localization"
	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/types"
)

func writeLocale(t *testing.T, assetDir string, lang, content string) {
	t.Helper()
	locDir := filepath.Join(assetDir, "loc")
	if err := os.MkdirAll(locDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(locDir, lang+".json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testLog() logger.Logger {
	return logger.CreateLoggerWithOutput("error", nil)
}

func hostEnglish() types.LanguageTag { return types.LanguageEnglish }

func TestOverrideWinsOverHostCulture(t *testing.T) {
	assetDir := t.TempDir()
	writeLocale(t, assetDir, "de", `{"cmd.help": "Hilfe"}`)

	svc, err := localization.New(assetDir, types.LanguageGerman, hostEnglish, testLog())
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}

	if svc.Language() != types.LanguageGerman {
		t.Errorf("expected de, got %s", svc.Language())
	}
	if !svc.UsedOverride() {
		t.Error("override branch should have been taken")
	}
	if svc.Tr("cmd.help") != "Hilfe" {
		t.Errorf("expected translated string, got %q", svc.Tr("cmd.help"))
	}
}

func TestHostCultureBranchWithoutOverride(t *testing.T) {
	assetDir := t.TempDir()
	writeLocale(t, assetDir, "en", `{"cmd.help": "Help"}`)

	svc, err := localization.New(assetDir, "", hostEnglish, testLog())
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}

	if svc.UsedOverride() {
		t.Error("default branch should have been taken")
	}
	if svc.Language() != types.LanguageEnglish {
		t.Errorf("expected en, got %s", svc.Language())
	}
}

func TestMissingLocaleFallsBackToKeys(t *testing.T) {
	svc, err := localization.New(t.TempDir(), types.LanguageFrench, hostEnglish, testLog())
	if err != nil {
		t.Fatalf("missing locale should not be fatal: %v", err)
	}
	if svc.Tr("cmd.unknown") != "cmd.unknown" {
		t.Errorf("expected key passthrough, got %q", svc.Tr("cmd.unknown"))
	}
}

func TestMalformedLocaleIsConstructionFailure(t *testing.T) {
	assetDir := t.TempDir()
	writeLocale(t, assetDir, "ja", `{broken`)

	if _, err := localization.New(assetDir, types.LanguageJapanese, hostEnglish, testLog()); err == nil {
		t.Fatal("malformed locale table should fail construction")
	}
}

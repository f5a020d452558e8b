package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRunMissingDorksFileFails(t *testing.T) {
	old := os.Args
	defer func() { os.Args = old }()
	os.Args = []string{"leadscout", "-services", "apps", "-dorks", filepath.Join(t.TempDir(), "missing.txt")}

	if code := run(); code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dorks.txt")
	body := "site:clutch.co apps\n\n# comment\n  site:g2.com crm  \n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := readLines(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"site:clutch.co apps", "site:g2.com crm"}; !reflect.DeepEqual(got, want) {
		t.Errorf("readLines = %v, want %v", got, want)
	}
}

func TestAskCampaign(t *testing.T) {
	in := strings.NewReader("Acme\nmobile apps\nstartups\n$10k\nUS\n")
	var out strings.Builder
	c := askCampaign(in, &out)
	if c.Business != "Acme" || c.Services != "mobile apps" || c.Geography != "US" {
		t.Errorf("campaign = %+v", c)
	}
	if !strings.Contains(out.String(), "Geography: ") {
		t.Errorf("prompts = %q", out.String())
	}
}

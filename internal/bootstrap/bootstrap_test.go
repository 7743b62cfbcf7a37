package bootstrap

import "testing"

func TestLoad_NoPluginPresentIsRegistrationOnly(t *testing.T) {
	ran, err := Load(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ran {
		t.Fatal("expected no plugin to be loaded")
	}
}

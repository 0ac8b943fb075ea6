package app

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestDefaultsFrom(t *testing.T) {
	home := func() (string, error) { return "/home/web", nil }
	noHome := func() (string, error) { return "", errors.New("no home") }

	tests := []struct {
		name    string
		env     map[string]string
		home    func() (string, error)
		want    Defaults
		wantErr bool
	}{
		{
			name: "env overrides both",
			env:  map[string]string{configPathEnv: "/etc/dedupe.toml", homeEnv: "/srv/dedupe"},
			home: noHome,
			want: Defaults{ConfigPath: "/etc/dedupe.toml", BaseDir: "/srv/dedupe", LogDir: "/srv/dedupe/log"},
		},
		{
			name: "home dir fallback",
			home: home,
			want: Defaults{
				ConfigPath: filepath.Join("/home/web", ".config", "dedupe.toml"),
				BaseDir:    filepath.Join("/home/web", ".local", "share", "dedupe"),
				LogDir:     filepath.Join("/home/web", ".local", "share", "dedupe", "log"),
			},
		},
		{
			name: "only base dir overridden",
			env:  map[string]string{homeEnv: "/srv/dedupe"},
			home: home,
			want: Defaults{
				ConfigPath: filepath.Join("/home/web", ".config", "dedupe.toml"),
				BaseDir:    "/srv/dedupe",
				LogDir:     "/srv/dedupe/log",
			},
		},
		{
			name:    "no home and no env",
			home:    noHome,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			got, err := defaultsFrom(getenv, tt.home)
			if (err != nil) != tt.wantErr {
				t.Fatalf("defaultsFrom() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("defaultsFrom() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGetDefaults_Env(t *testing.T) {
	t.Setenv(configPathEnv, "/custom/config.toml")
	t.Setenv(homeEnv, "/custom/dedupe")

	d, err := GetDefaults()
	if err != nil {
		t.Fatalf("GetDefaults() error = %v", err)
	}
	if d.ConfigPath != "/custom/config.toml" || d.LogDir != "/custom/dedupe/log" {
		t.Errorf("GetDefaults() = %+v", d)
	}
}

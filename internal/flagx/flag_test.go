package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{"separate value", []string{"-c", "conf.json", "-a", "localhost"}, []string{"-c"}, []string{"-c", "conf.json"}},
		{"equals form", []string{"-config=alt.json", "-a", "x"}, []string{"-c", "-config"}, []string{"-config=alt.json"}},
		{"unknown flags ignored", []string{"-x", "1", "-y=2", "positional"}, []string{"-c"}, []string{}},
		{"flag at end without value", []string{"-c"}, []string{"-c"}, []string{"-c"}},
		{"next flag is not a value", []string{"-c", "-i", "5"}, []string{"-c"}, []string{"-c"}},
		{"several allowed flags keep order", []string{"-s", "http://h", "-c", "a.json", "-q"}, []string{"-c", "-s"}, []string{"-s", "http://h", "-c", "a.json"}},
		{"repeated flag preserved", []string{"-c", "1.json", "-c", "2.json"}, []string{"-c"}, []string{"-c", "1.json", "-c", "2.json"}},
		{"empty", []string{}, []string{"-c"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")

	assert.Equal(t, "/etc/a.json", ConfigPath([]string{"-c", "/etc/a.json"}))
	assert.Equal(t, "/etc/b.json", ConfigPath([]string{"-config", "/etc/b.json", "-a", "x"}))
	assert.Equal(t, "/etc/2.json", ConfigPath([]string{"-c", "/etc/1.json", "-config", "/etc/2.json"}))
	assert.Empty(t, ConfigPath([]string{"-x", "1"}))
}

func TestConfigPath_EnvFallback(t *testing.T) {
	t.Setenv(ConfigEnvVar, "/from/env.json")

	assert.Equal(t, "/from/env.json", ConfigPath(nil))
	assert.Equal(t, "/from/flag.json", ConfigPath([]string{"-c", "/from/flag.json"}))
}

func TestJsonConfigFlags(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	os.Args = []string{"bin", "-c", "/path/short.json"}
	assert.Equal(t, "/path/short.json", JsonConfigFlags())
}

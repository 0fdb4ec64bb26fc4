package internal

import (
	"context"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// EnvFile names the .env file read by LoadEnvs.
const EnvFile string = "ENV_FILE"

// ProcessEnvs decodes envs into target (a pointer to a struct with env
// tags); empty values are treated as unset so tag defaults still apply.
func ProcessEnvs(envs map[string]string, target any) error {
	values := make(map[string]string, len(envs))
	for key, value := range envs {
		if value == "" {
			continue
		}
		values[key] = value
	}
	return envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   target,
		Lookuper: envconfig.MapLookuper(values),
	})
}

// Environ converts KEY=VALUE pairs (as returned by os.Environ) into a map.
func Environ(environ []string) map[string]string {
	envs := make(map[string]string, len(environ))
	for _, env := range environ {
		if key, value, ok := strings.Cut(env, "="); ok && key != "" {
			envs[key] = value
		}
	}
	return envs
}

// LoadEnvs converts environ into a map and, when ENV_FILE is set, adds the
// variables of that file; the environment takes precedence.
func LoadEnvs(environ []string) (map[string]string, error) {
	envs := Environ(environ)
	file := envs[EnvFile]
	if file == "" {
		return envs, nil
	}
	fileEnvs, err := godotenv.Read(file)
	if err != nil {
		return nil, err
	}
	for key, value := range fileEnvs {
		if _, ok := envs[key]; !ok {
			envs[key] = value
		}
	}
	return envs, nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const exampleYAML = `repository:
  owner: your-org
  name: your-repo
  token: ${GITHUB_TOKEN}

monitoring:
  issue_threshold_days: 7
  check_interval_hours: 6
  pr_lookback_hours: 24

email:
  smtp_host: smtp.gmail.com
  smtp_port: 587
  username: ${EMAIL_USERNAME}
  password: ${EMAIL_PASSWORD}
  recipients:
    - team@example.com

storage:
  db_path: ""

server:
  addr: ":8080"
`

const exampleEnv = `GITHUB_TOKEN=
EMAIL_USERNAME=
EMAIL_PASSWORD=
`

// WriteTemplates writes config.yaml and .env into dir. Existing files are kept
// unless force is set. It returns the paths it wrote.
func WriteTemplates(dir string, force bool) ([]string, error) {
	files := []struct {
		name    string
		content string
		mode    os.FileMode
	}{
		{DefaultPath, exampleYAML, 0o644},
		{".env", exampleEnv, 0o600},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err == nil && !force {
			continue
		}
		if err := os.WriteFile(path, []byte(f.content), f.mode); err != nil {
			return written, fmt.Errorf("writing %s: %w", f.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

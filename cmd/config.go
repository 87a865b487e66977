package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "looper"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage looper configuration.

Running bare 'looper config' is the same as 'looper config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# looper configuration
# See: looper config show (for effective values and sources)

# State/data directory (default: ~/.config/looper)
# state_dir: {{ .StateDir }}

# SQLite session archive path (default: ~/.config/looper/looper.db)
# db_path: {{ .DBPath }}

# Default log/state directory for loop runs
# logs_dir: {{ .LogsDir }}

# Agent settings
agent:
  # Task-execution agent command (must be on PATH)
  command: "{{ .AgentCommand }}"

# Loop settings
loop:
  # Completion phrase the agent is told to emit
  phrase: "{{ .LoopPhrase }}"

  # Consecutive iterations the phrase must appear in (default: 2)
  threshold: {{ .LoopThreshold }}

  # Iteration cap (default: 50)
  max_iterations: {{ .LoopMaxIterations }}

# Anthropic API (for 'looper analyze')
anthropic:
  # api_key: ""
  model: "{{ .AnthropicModel }}"
`

type configTemplateData struct {
	StateDir          string
	DBPath            string
	LogsDir           string
	AgentCommand      string
	LoopPhrase        string
	LoopThreshold     int
	LoopMaxIterations int
	AnthropicModel    string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:          viper.GetString("state_dir"),
		DBPath:            viper.GetString("db_path"),
		LogsDir:           viper.GetString("logs_dir"),
		AgentCommand:      viper.GetString("agent.command"),
		LoopPhrase:        viper.GetString("loop.phrase"),
		LoopThreshold:     viper.GetInt("loop.threshold"),
		LoopMaxIterations: viper.GetInt("loop.max_iterations"),
		AnthropicModel:    viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "LOOPER_STATE_DIR"},
	{Key: "db_path", EnvVar: "LOOPER_DB_PATH"},
	{Key: "logs_dir", EnvVar: "LOOPER_LOGS_DIR"},
	{Key: "agent.command", EnvVar: "LOOPER_AGENT_COMMAND"},
	{Key: "loop.phrase", EnvVar: "LOOPER_LOOP_PHRASE"},
	{Key: "loop.threshold", EnvVar: "LOOPER_LOOP_THRESHOLD"},
	{Key: "loop.max_iterations", EnvVar: "LOOPER_LOOP_MAX_ITERATIONS"},
	{Key: "loop.delay", EnvVar: "LOOPER_LOOP_DELAY"},
	{Key: "anthropic.model", EnvVar: "LOOPER_ANTHROPIC_MODEL"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// detectSource reports where a config value came from: env, file, or default.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if os.Getenv(envVar) != "" {
		return "(env)"
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

func configEditRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); err != nil {
		return fmt.Errorf("no config file at %s (run 'looper config init' first)", cfgPath)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	c := exec.Command(editor, cfgPath)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration. It is read once at run start and
// threaded explicitly through the components that need it.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	// Portal connection. Token is expected to be a pre-issued access token;
	// interactive authentication is out of scope.
	PortalURL string
	Token     string

	// TestMode limits the run to the first TestLimit groups.
	TestMode  bool
	TestLimit int

	// OutputFolder is the portal folder the hosted tables live in.
	OutputFolder string

	SnapshotTable string
	ContentTable  string
	MembersTable  string

	// RecentDays is the threshold for is_recent / is_active / active_members.
	RecentDays int

	// PageSize controls paged portal listings; EditBatchSize controls the
	// record-by-record fallback batches.
	PageSize      int
	EditBatchSize int

	// SystemAccounts overrides the built-in Esri system-account allowlist
	// used to exclude Living Atlas content from view aggregation.
	SystemAccounts []string

	LedgerPath string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from a .env file, the environment, and an
// optional groupscope.yml config file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("groupscope")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/groupscope")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GROUPSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	cfg := Config{
		AppName:        v.GetString("app_name"),
		AppVersion:     v.GetString("app_version"),
		Environment:    v.GetString("environment"),
		PortalURL:      strings.TrimRight(strings.TrimSpace(v.GetString("portal_url")), "/"),
		Token:          strings.TrimSpace(v.GetString("portal_token")),
		TestMode:       v.GetBool("test_mode"),
		TestLimit:      v.GetInt("test_limit"),
		OutputFolder:   v.GetString("output_folder"),
		SnapshotTable:  v.GetString("snapshot_table"),
		ContentTable:   v.GetString("content_table"),
		MembersTable:   v.GetString("members_table"),
		RecentDays:     v.GetInt("recent_days"),
		PageSize:       v.GetInt("page_size"),
		EditBatchSize:  v.GetInt("edit_batch_size"),
		SystemAccounts: v.GetStringSlice("system_accounts"),
		LedgerPath:     v.GetString("ledger_path"),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "groupscope")
	v.SetDefault("app_version", "0.1.0")
	v.SetDefault("environment", "development")
	v.SetDefault("test_mode", false)
	v.SetDefault("test_limit", 10)
	v.SetDefault("output_folder", "Group Analytics")
	v.SetDefault("snapshot_table", "Group_Snapshot")
	v.SetDefault("content_table", "Group_Content")
	v.SetDefault("members_table", "Group_Members")
	v.SetDefault("recent_days", 90)
	v.SetDefault("page_size", 100)
	v.SetDefault("edit_batch_size", 50)
	v.SetDefault("ledger_path", "groupscope.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

var (
	ErrMissingPortalURL = errors.New("missing_portal_url")
	ErrMissingToken     = errors.New("missing_portal_token")
	ErrInvalidThreshold = errors.New("invalid_recent_days")
)

func (c Config) validate() error {
	if c.PortalURL == "" {
		return ErrMissingPortalURL
	}
	if c.Token == "" {
		return ErrMissingToken
	}
	if c.RecentDays <= 0 {
		return ErrInvalidThreshold
	}
	return nil
}

func (c Config) Debug() bool {
	level := strings.ToLower(strings.TrimSpace(c.LogLevel))
	if level == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

package config

const (
	defaultStateDir              = "~/.local/share/evalo"
	defaultLogDir                = "~/.local/share/evalo/logs"
	defaultReportDir             = "."
	defaultGradingBaseURL        = "https://evalo.onrender.com"
	defaultProcessPath           = "/process-pdfs"
	defaultReportPath            = "/generate-report"
	defaultReportFilename        = "exam-results-report.pdf"
	defaultIdentityBaseURL       = "https://identitytoolkit.googleapis.com/v1"
	defaultIdentityTokenURL      = "https://securetoken.googleapis.com/v1/token"
	defaultGoogleIssuer          = "https://accounts.google.com"
	defaultLoginTimeoutSeconds   = 180
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultSessionFileName       = "session.json"
	defaultHistoryDatabaseName   = "history.db"
	defaultApplicationLogName    = "evalo.log"
	defaultRequireSignIn         = true
	defaultHistoryEnabled        = true
	defaultRequestTimeoutSeconds = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			ReportDir: defaultReportDir,
		},
		Grading: Grading{
			BaseURL:               defaultGradingBaseURL,
			ProcessPath:           defaultProcessPath,
			ReportPath:            defaultReportPath,
			ReportFilename:        defaultReportFilename,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Identity: Identity{
			BaseURL:             defaultIdentityBaseURL,
			TokenURL:            defaultIdentityTokenURL,
			GoogleIssuer:        defaultGoogleIssuer,
			LoginTimeoutSeconds: defaultLoginTimeoutSeconds,
			RequireSignIn:       defaultRequireSignIn,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Failed:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

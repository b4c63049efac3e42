package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Config is the explicit application configuration. It is loaded once at
// startup and injected at construction time; gateway adapters and services
// never read environment state themselves, which keeps them testable with
// mock credentials.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	Gateways struct {
		Stripe      StripeConfig      `yaml:"stripe"`
		Paystack    PaystackConfig    `yaml:"paystack"`
		Flutterwave FlutterwaveConfig `yaml:"flutterwave"`
		MTNMoMo     MTNMoMoConfig     `yaml:"mtn_momo"`

		// Priority is the global fallback order used when no regional
		// preference matches. Ties are broken by position, never randomly.
		Priority []string `yaml:"priority"`

		// RegionalPreferences routes a country hint to an ordered list of
		// gateway names, e.g. NG -> [paystack, flutterwave].
		RegionalPreferences map[string][]string `yaml:"regional_preferences"`
	} `yaml:"gateways"`

	Fraud struct {
		BlockScore        int   `yaml:"block_score"`         // score above which payments are blocked
		ReviewScore       int   `yaml:"review_score"`        // score above which payments are flagged
		MaxFailedAttempts int   `yaml:"max_failed_attempts"` // velocity window threshold
		WindowMinutes     int   `yaml:"window_minutes"`      // velocity window size
		MaxAmountUSD      int64 `yaml:"max_amount_usd"`      // minor units (cents)
	} `yaml:"fraud"`

	Currency struct {
		Settlement string `yaml:"settlement"` // settlement currency, default USD
		// Rates are USD-relative (units of currency per 1 USD), supplied by
		// the upstream rate source. A missing rate aborts initiation.
		Rates map[string]string `yaml:"rates"`
	} `yaml:"currency"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
		Enabled      bool   `yaml:"enabled"`
	} `yaml:"email"`

	Workers struct {
		VerifyIntervalMinutes int `yaml:"verify_interval_minutes"` // pending payment re-verification
		ExpireAfterHours      int `yaml:"expire_after_hours"`      // pending payments older than this fail
		VerifyQueueSize       int `yaml:"verify_queue_size"`       // async verification queue depth
	} `yaml:"workers"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
}

type PaystackConfig struct {
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
}

type FlutterwaveConfig struct {
	SecretKey  string `yaml:"secret_key"`
	SecretHash string `yaml:"secret_hash"`
	BaseURL    string `yaml:"base_url"`
}

type MTNMoMoConfig struct {
	SubscriptionKey string `yaml:"subscription_key"`
	APIUser         string `yaml:"api_user"`
	APIKey          string `yaml:"api_key"`
	CallbackSecret  string `yaml:"callback_secret"`
	BaseURL         string `yaml:"base_url"`
	Sandbox         bool   `yaml:"sandbox"`
}

var AppConfig *Config

// LoadConfig loads configuration from config.yaml, or from environment
// variables when DATABASE_URL is set (test/deployment mode).
func LoadConfig() {
	var cfg Config

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		applyDefaults(&cfg)
		AppConfig = &cfg
		return
	}

	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))

	cfg.Gateways.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.Gateways.Stripe.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.Gateways.Paystack.SecretKey = os.Getenv("PAYSTACK_SECRET_KEY")
	cfg.Gateways.Flutterwave.SecretKey = os.Getenv("FLUTTERWAVE_SECRET_KEY")
	cfg.Gateways.Flutterwave.SecretHash = os.Getenv("FLUTTERWAVE_SECRET_HASH")
	cfg.Gateways.MTNMoMo.SubscriptionKey = os.Getenv("MTN_MOMO_SUBSCRIPTION_KEY")
	cfg.Gateways.MTNMoMo.APIUser = os.Getenv("MTN_MOMO_API_USER")
	cfg.Gateways.MTNMoMo.APIKey = os.Getenv("MTN_MOMO_API_KEY")
	cfg.Gateways.MTNMoMo.CallbackSecret = os.Getenv("MTN_MOMO_CALLBACK_SECRET")
	cfg.Gateways.MTNMoMo.Sandbox = true

	applyDefaults(&cfg)
	AppConfig = &cfg
}

// applyDefaults fills policy data that is configuration, not logic: fraud
// thresholds, the routing table and the fallback rate table.
func applyDefaults(cfg *Config) {
	if cfg.Gateways.Priority == nil {
		cfg.Gateways.Priority = []string{"stripe", "paystack", "flutterwave", "mtn_momo"}
	}

	if cfg.Gateways.RegionalPreferences == nil {
		cfg.Gateways.RegionalPreferences = map[string][]string{
			"NG": {"paystack", "flutterwave"},
			"GH": {"paystack", "flutterwave"},
			"KE": {"flutterwave"},
			"UG": {"flutterwave", "mtn_momo"},
			"US": {"stripe"},
			"EU": {"stripe"},
		}
	}

	if cfg.Fraud.BlockScore == 0 {
		cfg.Fraud.BlockScore = 70
	}
	if cfg.Fraud.ReviewScore == 0 {
		cfg.Fraud.ReviewScore = 40
	}
	if cfg.Fraud.MaxFailedAttempts == 0 {
		cfg.Fraud.MaxFailedAttempts = 3
	}
	if cfg.Fraud.WindowMinutes == 0 {
		cfg.Fraud.WindowMinutes = 60
	}
	if cfg.Fraud.MaxAmountUSD == 0 {
		cfg.Fraud.MaxAmountUSD = 10000 * 100 // 10,000 USD in cents
	}

	if cfg.Currency.Settlement == "" {
		cfg.Currency.Settlement = "USD"
	}
	if cfg.Currency.Rates == nil {
		cfg.Currency.Rates = map[string]string{
			"USD": "1.0",
			"EUR": "0.85",
			"GBP": "0.73",
			"NGN": "1600.0",
			"GHS": "16.0",
			"KES": "160.0",
			"UGX": "3700.0",
			"ZAR": "18.5",
		}
	}

	if cfg.Workers.VerifyIntervalMinutes == 0 {
		cfg.Workers.VerifyIntervalMinutes = 15
	}
	if cfg.Workers.ExpireAfterHours == 0 {
		cfg.Workers.ExpireAfterHours = 24
	}
	if cfg.Workers.VerifyQueueSize == 0 {
		cfg.Workers.VerifyQueueSize = 256
	}

	if cfg.Gateways.Stripe.BaseURL == "" {
		cfg.Gateways.Stripe.BaseURL = "https://api.stripe.com/v1"
	}
	if cfg.Gateways.Paystack.BaseURL == "" {
		cfg.Gateways.Paystack.BaseURL = "https://api.paystack.co"
	}
	if cfg.Gateways.Flutterwave.BaseURL == "" {
		cfg.Gateways.Flutterwave.BaseURL = "https://api.flutterwave.com/v3"
	}
	if cfg.Gateways.MTNMoMo.BaseURL == "" {
		if cfg.Gateways.MTNMoMo.Sandbox {
			cfg.Gateways.MTNMoMo.BaseURL = "https://sandbox.momodeveloper.mtn.com"
		} else {
			cfg.Gateways.MTNMoMo.BaseURL = "https://proxy.momodeveloper.mtn.com"
		}
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

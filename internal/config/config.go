// Package config provides runtime configuration values for the shop.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissing = errors.New("config: required setting missing")
	ErrInvalid = errors.New("config: invalid setting")
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds every knob of the service.
type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string

	DiscordToken   string
	GuildID        string
	StaffRoleID    string
	CategoryID     string
	StockChannelID string
	AdminChannelID string
	// OrdersChannelID is optional; the staff order log is skipped when empty.
	OrdersChannelID string

	ClientID     string
	ClientSecret string
	RedirectURI  string
	ShopPageURL  string
	SharedSecret string

	ShopName string
	Currency string

	StoreBackend string
	DataDir      string
	SQLitePath   string
	RedisURL     string
	RedisPrefix  string
	NATSURL      string

	DisplaySyncInterval time.Duration
	PlatformTimeout     time.Duration
	RestockAnnounceTTL  time.Duration
	ShutdownTimeout     time.Duration

	Catalog *dominv.Catalog
}

// OAuthEnabled reports whether the /callback identity exchange is configured.
func (c Config) OAuthEnabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

var required = []string{
	"DISCORD_TOKEN",
	"GUILD_ID",
	"STAFF_ROLE_ID",
	"CATEGORY_ID",
	"STOCK_CHANNEL_ID",
	"ADMIN_CHANNEL_ID",
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durenv(key string, def time.Duration) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s=%q is not a positive duration", ErrInvalid, key, v)
	}
	return d, nil
}

// Load collects configuration from the environment. Every missing required
// variable is reported at once.
func Load() (Config, error) {
	var missing []string
	for _, k := range required {
		if getenv(k, "") == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}

	port := getenv("PORT", "3000")
	cfg := Config{
		ServiceName:     getenv("SERVICE_NAME", "ziko-shop"),
		Env:             getenv("ENV", "dev"),
		HTTPAddr:        getenv("HTTP_ADDR", ":"+port),
		DiscordToken:    getenv("DISCORD_TOKEN", ""),
		GuildID:         getenv("GUILD_ID", ""),
		StaffRoleID:     getenv("STAFF_ROLE_ID", ""),
		CategoryID:      getenv("CATEGORY_ID", ""),
		StockChannelID:  getenv("STOCK_CHANNEL_ID", ""),
		AdminChannelID:  getenv("ADMIN_CHANNEL_ID", ""),
		OrdersChannelID: getenv("ORDERS_CHANNEL_ID", ""),
		ClientID:        getenv("CLIENT_ID", ""),
		ClientSecret:    getenv("CLIENT_SECRET", ""),
		RedirectURI:     getenv("REDIRECT_URI", ""),
		ShopPageURL:     getenv("SHOP_PAGE_URL", ""),
		SharedSecret:    getenv("ORDER_SHARED_SECRET", ""),
		ShopName:        getenv("SHOP_NAME", "ZIKO SHOP"),
		Currency:        getenv("CURRENCY", "€"),
		StoreBackend:    strings.ToLower(getenv("STORE_BACKEND", BackendFile)),
		DataDir:         getenv("DATA_DIR", "data"),
		RedisURL:        getenv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:     getenv("REDIS_PREFIX", "shop"),
		NATSURL:         getenv("NATS_URL", ""),
	}
	cfg.SQLitePath = getenv("SQLITE_PATH", cfg.DataDir+"/shop.db")

	switch cfg.StoreBackend {
	case BackendFile, BackendSQLite, BackendRedis, BackendMemory:
	default:
		return Config{}, fmt.Errorf("%w: STORE_BACKEND=%q", ErrInvalid, cfg.StoreBackend)
	}

	var err error
	if cfg.DisplaySyncInterval, err = durenv("DISPLAY_SYNC_INTERVAL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PlatformTimeout, err = durenv("PLATFORM_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RestockAnnounceTTL, err = durenv("RESTOCK_ANNOUNCE_TTL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = durenv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	if path := getenv("CATALOG_FILE", ""); path != "" {
		cfg.Catalog, err = LoadCatalog(path)
	} else {
		cfg.Catalog, err = DefaultCatalog()
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type catalogFile struct {
	Products []catalogEntry `yaml:"products"`
}

type catalogEntry struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Stock int    `yaml:"stock"`
	Image string `yaml:"image"`
}

// LoadCatalog reads a YAML product list:
//
//	products:
//	  - id: nitro1m
//	    name: Nitro 1 mois
//	    price: 1.5
//	    stock: 0
func LoadCatalog(path string) (*dominv.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*dominv.Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: catalog: %w", ErrInvalid, err)
	}
	products := make([]dominv.Product, 0, len(f.Products))
	for _, e := range f.Products {
		price, err := decimal.NewFromString(strings.TrimSpace(e.Price))
		if err != nil {
			return nil, fmt.Errorf("%w: catalog price of %q: %w", ErrInvalid, e.ID, err)
		}
		products = append(products, dominv.Product{
			ID:           e.ID,
			Name:         e.Name,
			Price:        price,
			Image:        e.Image,
			InitialStock: e.Stock,
		})
	}
	c, err := dominv.NewCatalog(products)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return c, nil
}

// DefaultCatalog is the shop's built-in product list. Stock starts empty.
func DefaultCatalog() (*dominv.Catalog, error) {
	return dominv.NewCatalog([]dominv.Product{
		{ID: "nitro1m", Name: "Nitro 1 mois", Price: decimal.RequireFromString("1.5")},
		{ID: "nitro1y", Name: "Nitro 1 an", Price: decimal.NewFromInt(10)},
		{ID: "boost1m", Name: "Nitro Boost 1 mois", Price: decimal.RequireFromString("3.5")},
		{ID: "boost1y", Name: "Nitro Boost 1 an", Price: decimal.NewFromInt(30)},
	})
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
// 进程启动时构造一次，之后只读，通过构造函数注入到各组件
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Carrier  CarrierConfig  `mapstructure:"carrier"`
	Manifest ManifestConfig `mapstructure:"manifest"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Platform PlatformConfig `mapstructure:"platform"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`

	// StatusMap 黑貓狀態文字 -> Shopline delivery status
	// 上游文案是脆弱依赖，必须可以不改代码只改配置替换
	StatusMap map[string]string `mapstructure:"status_map"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// CarrierConfig 黑貓宅急便查询配置
type CarrierConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// 状态文案（黑貓词汇，非平台枚举）
	StatusNoData    string `mapstructure:"status_no_data"`   // 尚無資料
	StatusCollected string `mapstructure:"status_collected"` // 已集貨
	StatusDelivered string `mapstructure:"status_delivered"` // 順利送達

	// ProviderName 物流商显示名（写入 Shopline tracking patch）
	ProviderName   string `mapstructure:"provider_name"`
	ProviderLocale string `mapstructure:"provider_locale"`
}

// ManifestConfig 出货单接入配置
type ManifestConfig struct {
	// Path 本地 CSV 出货单路径（手动补跑用，邮件抓取在域外）
	Path string `mapstructure:"path"`

	// C2CMark 通路标记，命中的行走台账，其余走 Shopline
	C2CMark string `mapstructure:"c2c_mark"`
}

// LedgerConfig C2C Google Sheet 台账配置
type LedgerConfig struct {
	CredentialsFile string       `mapstructure:"credentials_file"`
	SheetPrefix     string       `mapstructure:"sheet_prefix"` // 目标工作表名前缀
	BackupSheet     string       `mapstructure:"backup_sheet"` // 备份工作表名
	Fields          LedgerFields `mapstructure:"fields"`
}

// LedgerFields 字段 -> 表头列名映射
type LedgerFields struct {
	OrderNumber    string `mapstructure:"order_number"`
	TrackingNumber string `mapstructure:"tracking_number"`
	Status         string `mapstructure:"status"`
	ShippingDate   string `mapstructure:"shipping_date"` // 集貨日期 YYYYMMDD
}

// PlatformConfig Shopline open API 配置
type PlatformConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`

	// DeliveryMethodID 本系统托管的出货方式
	// 防止误改不归本系统管的订单
	DeliveryMethodID string `mapstructure:"delivery_method_id"`
	PerPage          int    `mapstructure:"per_page"`
}

// NotifyConfig LINE 通知配置
type NotifyConfig struct {
	ChannelToken string `mapstructure:"channel_token"`
	GroupID      string `mapstructure:"group_id"`
}

// MySQLConfig 运行记录库配置（可选，DSN 为空则不落库）
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 任务完成事件发布配置（可选，Addr 为空则不发布）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// Load 加载配置文件，环境变量 DELSYNC_* 覆盖同名项
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("DELSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	// Token 只从环境变量读，不进配置文件
	if token := v.GetString("platform_token"); token != "" {
		cfg.Platform.Token = token
	}
	if token := v.GetString("line_token"); token != "" {
		cfg.Notify.ChannelToken = token
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bagel-delsync")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("server.port", "8080")

	v.SetDefault("carrier.base_url", "https://www.t-cat.com.tw")
	v.SetDefault("carrier.timeout", "10s")
	v.SetDefault("carrier.status_no_data", "尚無資料")
	v.SetDefault("carrier.status_collected", "已集貨")
	v.SetDefault("carrier.status_delivered", "順利送達")
	v.SetDefault("carrier.provider_name", "黑貓宅急便")
	v.SetDefault("carrier.provider_locale", "zh-hant")

	v.SetDefault("manifest.c2c_mark", "C2C")

	v.SetDefault("platform.base_url", "https://open.shopline.io")
	v.SetDefault("platform.timeout", "10s")
	v.SetDefault("platform.per_page", 200)

	v.SetDefault("redis.channel", "delsync_task_complete")

	v.SetDefault("status_map", map[string]string{
		"已集貨":  "shipped",
		"順利送達": "arrived",
		"取消取件": "returning",
		"退貨完成": "returned",
	})
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.Platform.Token == "" {
		return fmt.Errorf("platform.token is required (DELSYNC_PLATFORM_TOKEN)")
	}
	if c.Platform.DeliveryMethodID == "" {
		return fmt.Errorf("platform.delivery_method_id is required")
	}
	if c.Ledger.SheetPrefix == "" {
		return fmt.Errorf("ledger.sheet_prefix is required")
	}
	if c.Ledger.BackupSheet == "" {
		return fmt.Errorf("ledger.backup_sheet is required")
	}
	f := c.Ledger.Fields
	if f.OrderNumber == "" || f.TrackingNumber == "" || f.Status == "" || f.ShippingDate == "" {
		return fmt.Errorf("ledger.fields requires all four column names")
	}
	if len(c.StatusMap) == 0 {
		return fmt.Errorf("status_map must not be empty")
	}
	return nil
}

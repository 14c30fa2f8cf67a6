// internal/pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 是 time.Duration 的 YAML 包装，接受 "30s"、"2m" 这样的写法。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std 转回标准库类型。
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config 是整个服务的配置根结构。
// 加载顺序: 代码默认值 -> YAML 文件 -> 环境变量，后者覆盖前者。
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Infra    InfraConfig    `yaml:"infra"`
	Checkout CheckoutConfig `yaml:"checkout"`
}

type ServiceConfig struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

type InfraConfig struct {
	Mysql     MysqlConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type MysqlConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	// AvailabilityTTL 是库存可用量缓存条目的存活时间
	AvailabilityTTL Duration `yaml:"availabilityTtl"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	OutcomeTopic string   `yaml:"outcomeTopic"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type ZookeeperConfig struct {
	// Servers 为空时不启用 Sweeper 的分布式选主
	Servers []string `yaml:"servers"`
}

// CheckoutConfig 汇集了预留与结算流程的业务参数。
type CheckoutConfig struct {
	// ReservationTTL 是 Pending 预留的存活时间，超时后由 Sweeper 回收
	ReservationTTL Duration `yaml:"reservationTtl"`
	// MaxReserveAttempts 是乐观并发冲突时的重试上限
	MaxReserveAttempts int `yaml:"maxReserveAttempts"`
	// SweepInterval 是 Sweeper 的扫描间隔
	SweepInterval Duration `yaml:"sweepInterval"`
	// SweepBatchSize 是单次扫描最多处理的过期预留数
	SweepBatchSize int `yaml:"sweepBatchSize"`
	// SweepParallelism 是并发执行释放的上限
	SweepParallelism int `yaml:"sweepParallelism"`
	// CheckoutTimeout 是整个 Saga 的总超时
	CheckoutTimeout Duration `yaml:"checkoutTimeout"`
	// PaymentTimeout 是调用支付网关的单次超时
	PaymentTimeout Duration `yaml:"paymentTimeout"`
	Currency       string   `yaml:"currency"`
	PaymentURL     string   `yaml:"paymentUrl"`
	CartURL        string   `yaml:"cartUrl"`
}

// Default 返回带有合理默认值的配置。
func Default() *Config {
	return &Config{
		Service: ServiceConfig{Name: "checkout-service", Port: 8084},
		Infra: InfraConfig{
			Mysql:  MysqlConfig{DSN: "root:root@tcp(localhost:3306)/vertex?charset=utf8mb4&parseTime=True&loc=Local"},
			Redis:  RedisConfig{Addr: "localhost:6379", AvailabilityTTL: Duration(30 * time.Second)},
			Kafka:  KafkaConfig{Brokers: []string{"localhost:9092"}, OutcomeTopic: "checkout-outcome-topic"},
			Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Nacos:  NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
		Checkout: CheckoutConfig{
			ReservationTTL:     Duration(2 * time.Minute),
			MaxReserveAttempts: 5,
			SweepInterval:      Duration(15 * time.Second),
			SweepBatchSize:     256,
			SweepParallelism:   8,
			CheckoutTimeout:    Duration(10 * time.Second),
			PaymentTimeout:     Duration(5 * time.Second),
			Currency:           "CNY",
			PaymentURL:         "http://localhost:8086/charge",
			CartURL:            "http://localhost:8085/cart",
		},
	}
}

// Load 加载配置。path 为空或文件不存在时只使用默认值和环境变量。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv 让环境变量覆盖文件配置，方便容器化部署。
func (c *Config) applyEnv() {
	c.Service.Name = getEnv("SERVICE_NAME", c.Service.Name)
	c.Service.Port = getEnvInt("SERVICE_PORT", c.Service.Port)
	c.Infra.Mysql.DSN = getEnv("MYSQL_DSN", c.Infra.Mysql.DSN)
	c.Infra.Redis.Addr = getEnv("REDIS_ADDR", c.Infra.Redis.Addr)
	c.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", c.Infra.Jaeger.Endpoint)
	c.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", c.Infra.Nacos.ServerAddrs)
	c.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", c.Infra.Nacos.Namespace)
	c.Infra.Nacos.Group = getEnv("NACOS_GROUP", c.Infra.Nacos.Group)
	c.Checkout.PaymentURL = getEnv("PAYMENT_GATEWAY_URL", c.Checkout.PaymentURL)
	c.Checkout.CartURL = getEnv("CART_SERVICE_URL", c.Checkout.CartURL)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

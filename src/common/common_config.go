package common

type CommonConfig struct {
	RPCServer       string `yaml:"zcashd_address"`
	RPCUser         string `yaml:"rpc_user"`
	RPCPassword     string `yaml:"rpc_password"`
	PromPort        string `yaml:"prom_port"`
	HealthCheckPort string `yaml:"health_check_port"`
	PostgresConfig  string `yaml:"postgres"`
	RedisAddress    string `yaml:"redis_address"`
}

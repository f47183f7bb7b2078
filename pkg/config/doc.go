// Package config loads typed configuration structs from environment variables.
//
// Struct fields are described with github.com/caarlos0/env tags. A local .env
// file is read once through github.com/joho/godotenv for development.
//
//	type HTTPConfig struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	cfg := config.MustLoad[HTTPConfig]()
package config

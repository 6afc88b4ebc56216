// Package config loads and validates Gadget Core configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// GADGETS_* environment variables. Secrets such as the JWT signing key and
// broker credentials should come from the environment.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config

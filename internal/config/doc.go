// Package config loads the statetree CLI configuration.
//
// The configuration is stored in statetree.yaml. Every key is optional;
// command-line flags override file values.
//
// # Configuration File Structure
//
//	schema: schemas/profile.yaml
//	format: cbor
//	log:
//	  level: debug
//	  format: json
//	snapshot:
//	  digest: true
//	  compress: true
//	metrics:
//	  enabled: true
//	  namespace: profiles
//	tracing:
//	  enabled: true
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(flagConfig)
//	if err != nil {
//	    return err
//	}
//	desc, err := schema.LoadFile(cfg.SchemaPath())
package config

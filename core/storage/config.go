package storage

// Config holds configuration for the storage provider.
type Config struct {
	// Provider selects the backend: "s3" (S3-compatible / managed proxy
	// endpoints) or "local" (a directory on disk).
	Provider string `mapstructure:"provider" default:"s3" json:"provider"`
	// Endpoint is the URL of the storage service.
	Endpoint string `mapstructure:"endpoint" default:"localhost:9000" json:"endpoint"`
	// AccessKey is the access key ID for authentication.
	AccessKey string `mapstructure:"access_key" default:"minioadmin" json:"accessKey"`
	// SecretKey is the secret access key for authentication.
	SecretKey string `mapstructure:"secret_key" default:"minioadmin" json:"secretKey"`
	// UseSSL indicates whether to use SSL/TLS for connections.
	UseSSL bool `mapstructure:"use_ssl" default:"false" json:"useSSL"`
	// Bucket is the name of the bucket holding the tenant's photos.
	Bucket string `mapstructure:"bucket" default:"photos" json:"bucket"`
	// Region is the location of the bucket (e.g., us-east-1).
	Region string `mapstructure:"region" default:"" json:"region"`
	// LocalRoot is the root directory for the "local" provider.
	LocalRoot string `mapstructure:"local_root" default:"" json:"localRoot"`
	// PublicBaseURL is prepended to object keys to build public URLs.
	PublicBaseURL string `mapstructure:"public_base_url" default:"" json:"publicBaseURL"`
	// ListBuffer is the number of listing entries buffered ahead of the
	// consumer while paginating.
	ListBuffer int `mapstructure:"list_buffer" default:"256" json:"listBuffer"`
	// TimeoutSeconds is the connection timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30" json:"timeoutSeconds"`
}

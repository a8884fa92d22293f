package server

// Config is the JSON config file for the server
type Config struct {
	// Path to the sqlite database file
	DB string `json:"db"`
	// Directory where annotated output files are written before publishing
	ResultDir string `json:"resultDir"`
	// Base URL of the frontend, for OAuth redirects and CORS (eg "http://localhost:5173")
	FrontendURL string `json:"frontendUrl"`
	// Our own externally visible base URL, used to build links to locally served artifacts
	PublicURL string `json:"publicUrl"`

	Storage StorageConfig `json:"storage"`
	Models  ModelsConfig  `json:"models"`
	Google  *GoogleConfig `json:"google"`
	SMTP    *SMTPConfig   `json:"smtp"`
	Camera  CameraConfig  `json:"camera"`
}

// One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')
type StorageConfig struct {
	Filesystem *StorageConfigFS  `json:"filesystem"`
	GCS        *StorageConfigGCS `json:"gcs"`
}

type StorageConfigFS struct {
	Root string `json:"root"` // Path to the root of the filesystem
}

type StorageConfigGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
	Public bool   `json:"public"` // Whether the bucket is public. This allows us to give clients direct URLs into GCS, instead of passing the data through our service
}

// ModelsConfig locates the two detection backends
type ModelsConfig struct {
	IDCard  ModelConfig `json:"idcard"`
	Generic ModelConfig `json:"generic"`
}

type ModelConfig struct {
	// URL of the inference service, eg "http://localhost:9100"
	URL string `json:"url"`
	// Optional class file, one class name per line. If empty, we use the
	// built-in class table for this model.
	ClassFile string `json:"classFile"`
}

type GoogleConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURL  string `json:"redirectUrl"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type CameraConfig struct {
	Device string `json:"device"` // eg "/dev/video0"
	Width  int    `json:"width"`
	Height int    `json:"height"`
	FPS    int    `json:"fps"`
}

func (c *CameraConfig) applyDefaults() {
	if c.Device == "" {
		c.Device = "/dev/video0"
	}
	if c.Width == 0 {
		c.Width = 640
	}
	if c.Height == 0 {
		c.Height = 480
	}
	if c.FPS == 0 {
		c.FPS = 15
	}
}

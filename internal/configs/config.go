// Package configs for work with configurations
package configs

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultOutputDirectory = "podcasts"
	defaultPause           = 3 * time.Second
	defaultChunkSize       = 32 * 1024
	defaultTimeout         = 30 * time.Minute
	defaultUserAgent       = "podchive"
	defaultDB              = "var/podchive.bdb"
)

// Conf for config yaml
type Conf struct {
	Defaults struct {
		OutputDirectory string `yaml:"output_directory"`
	} `yaml:"defaults"`
	Download     Download           `yaml:"download"`
	Podcasts     map[string]Podcast `yaml:"podcasts"`
	CloudStorage struct {
		EndPointURL string `yaml:"endpoint_url"`
		Bucket      string `yaml:"bucket"`
		Region      string `yaml:"region"`
		Secure      bool   `yaml:"secure"`
		Secrets     struct {
			Key    string `yaml:"aws_key"`
			Secret string `yaml:"aws_secret"`
		} `yaml:"secrets"`
	} `yaml:"cloud_storage"`
	DB string `yaml:"db"`
}

// Download defines download section
type Download struct {
	Pause       time.Duration `yaml:"pause"`
	ChunkSize   int           `yaml:"chunk_size"`
	RateLimit   float64       `yaml:"rate_limit"`
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
	TagEpisodes bool          `yaml:"tag_episodes"`
}

// Podcast defines podcast section, a show with a fixed feed
type Podcast struct {
	Title  string `yaml:"title"`
	RSSURL string `yaml:"rss_url"`
}

// Default returns config used when no config file exists
func Default() *Conf {
	res := &Conf{}
	res.Download.TagEpisodes = true
	res.CloudStorage.Secure = true
	res.setDefaults()
	return res
}

// Load config from file
func Load(fileName string) (res *Conf, err error) {
	res = Default()
	data, err := os.ReadFile(fileName) // nolint
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, res); err != nil {
		return nil, err
	}
	res.setDefaults()
	return res, nil
}

// Show returns configured podcast by its name
func (c *Conf) Show(name string) (Podcast, error) {
	p, ok := c.Podcasts[name]
	if !ok {
		return Podcast{}, fmt.Errorf("unknown show %q", name)
	}
	if p.RSSURL == "" {
		return Podcast{}, fmt.Errorf("show %q has no rss_url", name)
	}
	return p, nil
}

// ShowNames returns sorted names of configured podcasts
func (c *Conf) ShowNames() []string {
	names := make([]string, 0, len(c.Podcasts))
	for name := range c.Podcasts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasCloudStorage tells if cloud storage section is filled
func (c *Conf) HasCloudStorage() bool {
	return c.CloudStorage.EndPointURL != "" && c.CloudStorage.Bucket != ""
}

func (c *Conf) setDefaults() {
	if c.Defaults.OutputDirectory == "" {
		c.Defaults.OutputDirectory = defaultOutputDirectory
	}
	// negative pause disables throttling between episodes
	if c.Download.Pause == 0 {
		c.Download.Pause = defaultPause
	}
	if c.Download.ChunkSize <= 0 {
		c.Download.ChunkSize = defaultChunkSize
	}
	if c.Download.Timeout <= 0 {
		c.Download.Timeout = defaultTimeout
	}
	if c.Download.UserAgent == "" {
		c.Download.UserAgent = defaultUserAgent
	}
	if c.DB == "" {
		c.DB = defaultDB
	}
}

// DBFile returns bolt db file, explicitly given file wins over config
func (c *Conf) DBFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return c.DB
}

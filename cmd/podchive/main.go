package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"podchive/internal/app/podchive"
	"podchive/internal/app/podchive/podcast"
	"podchive/internal/app/podchive/proc"
	"podchive/internal/configs"
)

var opts struct {
	Conf    string `short:"c" long:"conf" env:"PODCHIVE_CONF" default:"podchive.yml" description:"config file (yml)"`
	DB      string `short:"d" long:"db" env:"PODCHIVE_DB" description:"bolt db file with download history (default from config, var/podchive.bdb)"`
	Verbose bool   `short:"v" long:"verbose" env:"DEBUG" description:"verbose output"`
}

type downloadCommand struct {
	RSSURL          string `short:"u" long:"rss-url" description:"RSS feed URL from which to download podcast episodes"`
	Show            string `short:"s" long:"show" description:"configured show to download"`
	All             bool   `short:"a" long:"all" description:"download all configured shows"`
	OutputDirectory string `short:"o" long:"output-directory" env:"PODCHIVE_OUTPUT" description:"directory to download into (default from config)"`
	NoProgress      bool   `long:"no-progress" description:"don't show progress bar"`
}

type showsCommand struct {
	OutputDirectory string `short:"o" long:"output-directory" env:"PODCHIVE_OUTPUT" description:"archive directory (default from config)"`
}

type uploadCommand struct {
	OutputDirectory string `short:"o" long:"output-directory" env:"PODCHIVE_OUTPUT" description:"archive directory (default from config)"`
}

var ctx = context.Background()

func checkFileExists(filepath string) bool {
	if _, err := os.Stat(filepath); errors.Is(err, os.ErrNotExist) {
		return false
	}

	return true
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("can't load .env, %v\n", err)
	}

	var stop context.CancelFunc
	ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := flags.NewParser(&opts, flags.PassDoubleDash|flags.HelpFlag)
	p.CommandHandler = func(cmd flags.Commander, args []string) error {
		setupLog(opts.Verbose)
		return cmd.Execute(args)
	}

	addCommand(p, "download", "Download episodes of a podcast given its RSS feed URL or configured show", &downloadCommand{})
	addCommand(p, "shows", "List configured shows", &showsCommand{})
	addCommand(p, "upload", "Upload downloaded episodes to cloud storage", &uploadCommand{})

	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				p.WriteHelp(os.Stderr)
				os.Exit(2)
			}
			fmt.Printf("%v\n", err)
			os.Exit(1)
		}
		stop()
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func addCommand(p *flags.Parser, name, description string, data interface{}) {
	if _, err := p.AddCommand(name, description, description, data); err != nil {
		log.Fatalf("[ERROR] can't add command %s, %v", name, err)
	}
}

// Execute download command
func (c *downloadCommand) Execute(_ []string) error {
	selected := 0
	for _, set := range []bool{c.RSSURL != "", c.Show != "", c.All} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		return errors.New("exactly one of --rss-url, --show or --all is required")
	}

	var progress proc.Progress
	if !c.NoProgress {
		progress = newBarProgress(os.Stderr)
	}

	app, closeApp, err := newApp(c.OutputDirectory, progress)
	if err != nil {
		return err
	}
	defer closeApp()

	switch {
	case c.RSSURL != "":
		_, err = app.Download(ctx, c.RSSURL)
	case c.Show != "":
		_, err = app.DownloadShow(ctx, c.Show)
	default:
		_, err = app.DownloadAll(ctx)
	}
	return err
}

// Execute shows command
func (c *showsCommand) Execute(_ []string) error {
	app, closeApp, err := newApp(c.OutputDirectory, nil)
	if err != nil {
		return err
	}
	defer closeApp()

	shows, err := app.Shows()
	if err != nil {
		return err
	}
	for _, s := range shows {
		fmt.Printf("%-20s %-40s %5d  %s\n", s.Name, s.Title, s.Archived, s.RSSURL)
	}
	return nil
}

// Execute upload command
func (c *uploadCommand) Execute(_ []string) error {
	app, closeApp, err := newApp(c.OutputDirectory, nil)
	if err != nil {
		return err
	}
	defer closeApp()

	_, err = app.Upload(ctx)
	return err
}

func loadConfig() (*configs.Conf, error) {
	configFile := opts.Conf

	if !checkFileExists(configFile) {
		configFile = "configs/podchive.yml"

		if !checkFileExists(configFile) {
			log.Printf("[DEBUG] config file not found, using defaults")
			return configs.Default(), nil
		}
	}

	conf, err := configs.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("can't load config %s: %w", configFile, err)
	}
	return conf, nil
}

func newApp(outputDirectory string, progress proc.Progress) (*podchive.App, func(), error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	if outputDirectory == "" {
		outputDirectory = conf.Defaults.OutputDirectory
	}
	archive, err := podcast.NewArchive(outputDirectory)
	if err != nil {
		return nil, nil, err
	}

	dbFile := conf.DBFile(opts.DB)
	db, err := podchive.NewBoltDB(dbFile)
	if err != nil {
		return nil, nil, fmt.Errorf("can't create boltdb instance: %w", err)
	}

	client := podchive.NewHTTPClient(conf.Download.Timeout)
	procEntity := &proc.Processor{
		Archive: archive,
		Downloader: &podcast.Downloader{
			Client:    client,
			UserAgent: conf.Download.UserAgent,
			ChunkSize: conf.Download.ChunkSize,
			RateLimit: conf.Download.RateLimit,
		},
		Storage:     &proc.BoltDB{DB: db},
		TagEpisodes: conf.Download.TagEpisodes,
		Pause:       conf.Download.Pause,
		Progress:    progress,
	}

	if conf.HasCloudStorage() {
		s3client, err := podchive.NewS3Client(
			conf.CloudStorage.EndPointURL,
			conf.CloudStorage.Secrets.Key,
			conf.CloudStorage.Secrets.Secret,
			conf.CloudStorage.Secure)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("can't create s3client instance: %w", err)
		}
		procEntity.S3Client = &proc.S3Store{Client: s3client, Location: conf.CloudStorage.Region, Bucket: conf.CloudStorage.Bucket}
	}

	app, err := podchive.NewApplication(conf, procEntity, podcast.NewParser(client, conf.Download.UserAgent))
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("can't create app: %w", err)
	}

	closeApp := func() {
		if err := db.Close(); err != nil {
			log.Printf("[WARN] can't close db %s, %v", dbFile, err)
		}
	}
	return app, closeApp, nil
}

func setupLog(dbg bool) {
	if dbg {
		log.Setup(log.Debug, log.CallerFile, log.CallerFunc, log.Msec, log.LevelBraces)
		return
	}
	log.Setup(log.Msec, log.LevelBraces)
}

package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	DBPath       string
	SessionID    int64
	OutputFile   string
	Format       ImageFormat
	Theme        ColorTheme
	CellWidth    int
	MinAmplitude *float64
	MaxAmplitude *float64
	List         bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:    ImagePNG,
		Theme:     ThermalTheme,
		CellWidth: 12,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat, theme string
	var minAmp, maxAmp float64
	flag.StringVar(&c.DBPath, "db", "", "Path to the capture database file")
	flag.Int64Var(&c.SessionID, "s", 1, "Session ID")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&theme, "theme", string(ThermalTheme), "Color theme. [classic, grayscale, thermal]")
	flag.IntVar(&c.CellWidth, "cell", c.CellWidth, "Horizontal pixels per subcarrier")
	flag.Float64Var(&minAmp, "min-amp", 0, "Define a manual minimum amplitude")
	flag.Float64Var(&maxAmp, "max-amp", 0, "Define a manual maximum amplitude")
	flag.BoolVar(&c.List, "list", false, "List capture sessions in the database and exit")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "min-amp" {
			c.MinAmplitude = &minAmp
		}
		if f.Name == "max-amp" {
			c.MaxAmplitude = &maxAmp
		}
	})

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.List {
		// No further flags needed in list mode.
		return c, nil
	} else if c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := validThemes[ColorTheme(theme)]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	} else if c.CellWidth < 1 {
		err = fmt.Errorf("invalid cell width: %d", c.CellWidth)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.Theme = ColorTheme(theme)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

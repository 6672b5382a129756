package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

var errUsage = errors.New("exactly one of --url or --url-list is required")

type cliOptions struct {
	URL           string
	URLList       string
	OutputDir     string
	DownloadImage bool
}

func parseFlags(args []string, defaultOutputDir string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{}

	fs := flag.NewFlagSet("product-scraper", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.URL, "url", "", "Amazon product URL to scrape")
	fs.StringVar(&opts.URL, "u", "", "shorthand for --url")
	fs.StringVar(&opts.URLList, "url-list", "", "File with one Amazon product URL per line")
	fs.StringVar(&opts.URLList, "ul", "", "shorthand for --url-list")
	fs.StringVar(&opts.OutputDir, "output-dir", defaultOutputDir, "Directory receiving item_<n> folders")
	fs.StringVar(&opts.OutputDir, "o", defaultOutputDir, "shorthand for --output-dir")
	fs.BoolVar(&opts.DownloadImage, "download-image", false, "Download every hiRes image into images/")
	fs.BoolVar(&opts.DownloadImage, "d", false, "shorthand for --download-image")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: product-scraper (--url <url> | --url-list <file>) [--output-dir <dir>] [--download-image]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if (opts.URL == "") == (opts.URLList == "") {
		fs.Usage()
		return nil, errUsage
	}

	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	return opts, nil
}

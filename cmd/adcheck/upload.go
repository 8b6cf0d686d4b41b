package main

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fpang/ad-compliance-analyzer/internal/cli"
	"github.com/fpang/ad-compliance-analyzer/internal/storage"
)

var (
	prefixFlag  string
	presignFlag time.Duration
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Stage an asset, or a zip of assets, in the staging bucket",
	Long: `Upload a file to S3_BUCKET under <prefix>/<uuid>/ and print its locator.
A .zip is extracted and every entry uploaded (zstd-compressed entries are
supported). With --presign, a time-limited GET URL is printed per object.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&prefixFlag, "prefix", "assets", "Key prefix for uploaded objects")
	uploadCmd.Flags().DurationVar(&presignFlag, "presign", 0, "Also print a presigned GET URL valid for this long (e.g. 15m)")
}

type uploadedObject struct {
	Name      string `json:"name"`
	Locator   string `json:"locator"`
	Presigned string `json:"presigned_url,omitempty"`
}

func runUpload(cmd *cobra.Command, args []string) error {
	resolved, err := cli.ValidateAndResolveFile(args[0])
	if err != nil {
		return err
	}

	app := cli.InitApp("upload")
	if err := app.Config.RequireBucket(); err != nil {
		return err
	}
	if presignFlag > 0 && app.Storage.Presigner == nil {
		return errors.New("--presign requires the s3 storage backend")
	}

	f, err := os.Open(resolved)
	if err != nil {
		return fmt.Errorf("open %s: %w", resolved, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", resolved, err)
	}

	ctx := cmd.Context()
	keyPrefix := path.Join(strings.Trim(prefixFlag, "/"), uuid.NewString())
	name := filepath.Base(resolved)

	var uploaded []uploadedObject
	if strings.EqualFold(filepath.Ext(name), ".zip") {
		files, err := storage.ExtractZip(ctx, app.Storage.Objects, app.Config.Bucket, keyPrefix, f, info.Size())
		if err != nil {
			return err
		}
		for entry, file := range files {
			uploaded = append(uploaded, uploadedObject{Name: entry, Locator: file.Locator.String()})
		}
		sort.Slice(uploaded, func(i, j int) bool { return uploaded[i].Name < uploaded[j].Name })
	} else {
		loc, err := storage.UploadFile(ctx, app.Storage.Objects, app.Config.Bucket, path.Join(keyPrefix, name), f)
		if err != nil {
			return err
		}
		uploaded = append(uploaded, uploadedObject{Name: name, Locator: loc.String()})
	}

	if presignFlag > 0 {
		for i := range uploaded {
			loc, err := storage.ParseLocator(uploaded[i].Locator)
			if err != nil {
				return err
			}
			url, err := storage.GeneratePresignedURL(ctx, app.Storage.Presigner, loc, presignFlag)
			if err != nil {
				return err
			}
			uploaded[i].Presigned = url
		}
	}
	return cli.PrintJSON(cmd.OutOrStdout(), uploaded)
}

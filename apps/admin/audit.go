package main

import (
	"context"
	"fmt"
	"path"

	"github.com/trezcool/kaushal/core/institution"
	blobsvc "github.com/trezcool/kaushal/services/blob"
)

// audit writes the institution reports to a directory, or to S3 when s3Target is set.
// Without flags the configured bucket wins over the configured directory.
func (cli *commandLine) audit(ctx context.Context, outDir, s3Target string) error {
	if outDir == "" && s3Target == "" && cli.conf.Reports.S3Bucket != "" {
		s3Target = path.Join(cli.conf.Reports.S3Bucket, cli.conf.Reports.S3Prefix)
	}
	var (
		w    institution.ReportWriter
		dest string
	)
	switch {
	case s3Target != "":
		bucket, prefix, err := blobsvc.ParseS3Target(s3Target)
		if err != nil {
			return err
		}
		if w, err = cli.newS3Writer(ctx, bucket, prefix); err != nil {
			return err
		}
		dest = "s3://" + path.Join(bucket, prefix)
	default:
		if outDir == "" {
			outDir = cli.conf.Reports.Dir
		}
		w = blobsvc.NewDirWriter(outDir)
		dest = outDir
	}

	files, err := institution.WriteReports(ctx, cli.dir, w, nowFunc())
	for _, f := range files {
		fmt.Fprintf(cli.out, "wrote %s/%s\n", dest, f)
	}
	return err
}

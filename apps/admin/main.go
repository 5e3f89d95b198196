package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kaushal/core"
	"github.com/trezcool/kaushal/core/analysis"
	"github.com/trezcool/kaushal/core/institution"
	"github.com/trezcool/kaushal/core/user"
	blobsvc "github.com/trezcool/kaushal/services/blob"
	logsvc "github.com/trezcool/kaushal/services/logger"
	"github.com/trezcool/kaushal/storage"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// migrations are run explicitly with `admin migrate`
	stores, err := storage.Open(conf, false)
	if err != nil {
		logger.Fatal("setting up database", err)
	}

	dir, err := institution.LoadEmbedded()
	if err != nil {
		logger.Fatal("loading institutions", err)
	}

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	cli := commandLine{
		conf:        conf,
		stores:      stores,
		usrSvc:      user.NewService(stores.Users, validate, translator),
		analysisSvc: analysis.NewService(stores.Analysis, validate, translator),
		dir:         dir,
		out:         os.Stdout,
		newS3Writer: func(ctx context.Context, bucket, prefix string) (institution.ReportWriter, error) {
			client, err := blobsvc.NewS3Client(ctx, conf)
			if err != nil {
				return nil, err
			}
			return blobsvc.NewS3Writer(client, bucket, prefix), nil
		},
	}
	err = cli.run(os.Args)
	if cErr := stores.Close(); cErr != nil {
		logger.Error("closing database", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}

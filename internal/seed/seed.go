// Package seed imports channel and video records from CSV files so the
// collector has something to fetch before the API has told it anything. Rows
// already present in the store are left untouched.
package seed

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"fknsrs.biz/p/sorm"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytmeta/internal/ctxclock"
	"fknsrs.biz/p/ytmeta/internal/ctxdb"
	"fknsrs.biz/p/ytmeta/internal/ctxlogger"
	"fknsrs.biz/p/ytmeta/models"
)

// ImportChannels reads a channel seed file with columns
// external_id,person,title,about. The header row is discarded and records
// with an empty leading id are skipped.
func ImportChannels(ctx context.Context, filePath string) error {
	records, err := readRecords(filePath)
	if err != nil {
		return fmt.Errorf("seed.ImportChannels: %w", err)
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("seed.ImportChannels: %w", err)
	}

	imported := 0

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, record := range records {
			if len(record) == 0 || record[0] == "" {
				continue
			}

			var channel models.Channel
			if err := sorm.FindFirstWhere(ctx, tx, &channel, "where external_id = ?", record[0]); err != nil {
				if err != sql.ErrNoRows {
					return err
				}

				channel.CreatedAt = now
				channel.ExternalID = record[0]
				channel.Person = field(record, 1)
				channel.Title = field(record, 2)
				channel.About = field(record, 3)

				if err := sorm.CreateRecord(ctx, tx, &channel); err != nil {
					return err
				}

				imported++
			}
		}

		return nil
	}); err != nil {
		return fmt.Errorf("seed.ImportChannels: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"seed.file":     filePath,
		"seed.imported": imported,
		"seed.total":    len(records),
	}).Info("channel seed import finished")

	return nil
}

// ImportVideos reads a video seed file with columns
// external_id,channel_external_id,title. Videos whose channel is unknown are
// skipped; the fetch path only ever works on channels already tracked.
func ImportVideos(ctx context.Context, filePath string) error {
	records, err := readRecords(filePath)
	if err != nil {
		return fmt.Errorf("seed.ImportVideos: %w", err)
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("seed.ImportVideos: %w", err)
	}

	imported := 0

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, record := range records {
			if len(record) == 0 || record[0] == "" {
				continue
			}

			var channel models.Channel
			if err := sorm.FindFirstWhere(ctx, tx, &channel, "where external_id = ?", field(record, 1)); err != nil {
				if err != sql.ErrNoRows {
					return err
				}

				continue
			}

			var video models.Video
			if err := sorm.FindFirstWhere(ctx, tx, &video, "where external_id = ?", record[0]); err != nil {
				if err != sql.ErrNoRows {
					return err
				}

				video.CreatedAt = now
				video.ExternalID = record[0]
				video.ChannelID = &channel.ID
				video.ChannelExternalID = channel.ExternalID
				video.Title = field(record, 2)

				if err := sorm.CreateRecord(ctx, tx, &video); err != nil {
					return err
				}

				imported++
			}
		}

		return nil
	}); err != nil {
		return fmt.Errorf("seed.ImportVideos: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"seed.file":     filePath,
		"seed.imported": imported,
		"seed.total":    len(records),
	}).Info("video seed import finished")

	return nil
}

func readRecords(filePath string) ([][]string, error) {
	fd, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("readRecords: could not open seed file: %w", err)
	}
	defer fd.Close()

	r := csv.NewReader(fd)
	r.FieldsPerRecord = -1

	// header row
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}

		return nil, fmt.Errorf("readRecords: could not read header: %w", err)
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("readRecords: could not read records: %w", err)
	}

	return records, nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}

	return ""
}

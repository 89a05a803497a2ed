package cmd

import (
	"fmt"
	"time"

	"github.com/agentic-research/riffle/internal/config"
	"github.com/agentic-research/riffle/internal/dumpio"
	"github.com/agentic-research/riffle/internal/manifest"
	"github.com/agentic-research/riffle/internal/override"
	"github.com/agentic-research/riffle/internal/riffle"
	"github.com/agentic-research/riffle/internal/writeback"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"
)

// runMerge performs one merge run, recording it in the manifest and report
// when those are configured. Both are written for failed runs too.
func runMerge(cfg config.Config, log logrus.FieldLogger) (riffle.Stats, error) {
	rep := riffle.Report{
		Input:     cfg.Input,
		Output:    cfg.Output,
		Overrides: cfg.Overrides,
		KeyMode:   cfg.KeyMode.String(),
	}

	var man *manifest.Manifest
	if cfg.Manifest != "" {
		var err error
		man, err = manifest.Open(cfg.Manifest)
		if err != nil {
			return riffle.Stats{}, err
		}
		defer func() { _ = man.Close() }()
		if _, err := man.Begin(manifest.Run{
			Input:     cfg.Input,
			Output:    cfg.Output,
			Overrides: cfg.Overrides,
			KeyMode:   cfg.KeyMode.String(),
		}); err != nil {
			return riffle.Stats{}, err
		}
	}

	st, err := mergeDump(cfg, log, man, &rep)

	if man != nil {
		res := manifest.Result{Updated: st.Updated, Appended: st.Appended, Unmodified: st.Unmodified, BytesOut: st.BytesOut}
		if ferr := man.Finish(res, err); ferr != nil && err == nil {
			err = ferr
		}
	}
	if cfg.Report != "" {
		rep.Stats, rep.Err = st, err
		if rerr := writeback.WriteFile(cfg.Report, rep.WriteJSON); rerr != nil && err == nil {
			err = fmt.Errorf("write report: %w", rerr)
		}
	}
	if err != nil {
		return st, err
	}

	log.WithFields(logrus.Fields{
		"read":    humanize.Bytes(uint64(st.BytesIn)),
		"written": humanize.Bytes(uint64(st.BytesOut)),
		"elapsed": st.Elapsed.Round(time.Millisecond),
	}).Info("merge complete")
	log.Infof("%s updated pages", humanize.Comma(int64(st.Updated)))
	log.Infof("%s new pages", humanize.Comma(int64(st.Appended)))
	log.Infof("%s unmodified pages", humanize.Comma(int64(st.Unmodified)))
	if st.Unkeyed > 0 {
		log.Warnf("%s pages had no key and were copied unchanged", humanize.Comma(int64(st.Unkeyed)))
	}
	return st, nil
}

// mergeDump opens the input and output before the override directory is scanned.
func mergeDump(cfg config.Config, log logrus.FieldLogger, man *manifest.Manifest, rep *riffle.Report) (riffle.Stats, error) {
	in, err := dumpio.Open(cfg.Input)
	if err != nil {
		return riffle.Stats{}, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := writeback.Create(cfg.Output)
	if err != nil {
		return riffle.Stats{}, fmt.Errorf("create output: %w", err)
	}
	defer out.Abort()
	w := dumpio.NewWriter(out, dumpio.Compressed(cfg.Output))

	idx, err := override.NewBuilder(cfg.Format, cfg.KeyMode, log).Build(osfs.New(cfg.Overrides))
	if err != nil {
		return riffle.Stats{}, err
	}
	rep.Indexed = idx.Len()
	rep.Skipped = idx.SkippedReasons()

	m := riffle.NewMerger(idx, cfg.Format, cfg.KeyMode, log)
	if man != nil {
		m.Observe = func(ev riffle.Event) error {
			return man.Record(manifest.Applied{Action: string(ev.Action), Key: ev.Key, Title: ev.Title, Path: ev.Path})
		}
	}

	log.WithFields(logrus.Fields{"input": cfg.Input, "output": cfg.Output}).Info("merging dump")
	st, err := m.Merge(in, w)
	if err != nil {
		return st, err
	}
	if err := w.Close(); err != nil {
		return st, fmt.Errorf("finish output: %w", err)
	}
	if err := out.Commit(); err != nil {
		return st, err
	}
	return st, nil
}

package gencmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jaswdr/faker/v2"
	"github.com/peterbourgon/ff/v4"

	"github.com/fieldworks-labs/trackmock/internal/cmd/rootcmd"
	"github.com/fieldworks-labs/trackmock/pkg/tracker"
	"github.com/fieldworks-labs/trackmock/pkg/tracksim"
)

type Config struct {
	*rootcmd.RootConfig
	Command *ff.Command
	Flags   *ff.FlagSet

	count    *int
	projects *int
	seed     *int
	output   *string
}

func New(parent *rootcmd.RootConfig) *Config {
	cfg := &Config{RootConfig: parent}
	cfg.Flags = ff.NewFlagSet("gen").SetParent(parent.Flags)

	cfg.count = cfg.Flags.IntLong("count", 50, "number of assets to generate")
	cfg.projects = cfg.Flags.IntLong("projects", 3, "number of projects to spread assets across")
	cfg.seed = cfg.Flags.IntLong("seed", 0, "seed for reproducible output (0 picks a random one)")
	cfg.output = cfg.Flags.String('o', "output", "", "write the dataset to this file instead of stdout")

	cfg.Command = &ff.Command{
		Name:      "gen",
		Usage:     "trackmock gen [FLAGS]",
		ShortHelp: "Generate a random dataset file.",
		Flags:     cfg.Flags,
		Exec:      cfg.Exec,
	}

	parent.Command.Subcommands = append(parent.Command.Subcommands, cfg.Command)
	return cfg
}

func (cfg *Config) Exec(ctx context.Context, _ []string) error {
	ds, err := generateDataset(*cfg.count, *cfg.projects, int64(*cfg.seed))
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	data = append(data, '\n')

	if *cfg.output == "" {
		_, err := cfg.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*cfg.output, data, 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	cfg.Logger().Info("Wrote dataset.",
		slog.String("path", *cfg.output),
		slog.Int("assets", len(ds.Assets)),
		slog.Int("projects", len(ds.Projects)))
	return nil
}

var (
	assetTypes = []tracker.AssetType{
		{ID: 1, Name: "server"},
		{ID: 2, Name: "laptop"},
		{ID: 3, Name: "switch"},
		{ID: 4, Name: "sensor"},
	}
	programs = []string{"atlas", "borealis", "cascadia", "helios"}
	models   = []string{"PowerEdge R740", "ProLiant DL380", "ThinkSystem SR650", "Apollo 6500"}
)

// generateDataset builds a dataset of assetCount assets spread across
// projectCount projects. The same seed yields the same dataset.
func generateDataset(assetCount, projectCount int, seed int64) (*tracksim.Dataset, error) {
	if assetCount < 1 {
		return nil, errors.New("count must be positive")
	}
	if projectCount < 1 {
		return nil, errors.New("projects must be positive")
	}

	f := faker.New()
	if seed != 0 {
		f = faker.NewWithSeedInt64(seed)
	}

	ds := &tracksim.Dataset{}
	for i := range projectCount {
		ds.Projects = append(ds.Projects, tracker.Project{
			ID:         i + 1,
			Identifier: fmt.Sprintf("site-%02d", i+1),
			Name:       f.Company().Name(),
		})
	}

	statuses := tracker.Statuses()
	for i := range assetCount {
		program := programs[f.IntBetween(0, len(programs)-1)]
		name := fmt.Sprintf("%s-%03d", program, i+1)
		typ := assetTypes[f.IntBetween(0, len(assetTypes)-1)]

		a := tracker.Asset{
			ID:        i + 1,
			Name:      name,
			Status:    statuses[f.IntBetween(0, len(statuses)-1)],
			Type:      typ,
			IsPrivate: f.IntBetween(0, 9) == 0,
			Project:   ds.Projects[f.IntBetween(0, projectCount-1)],
			Author:    tracker.Author{ID: f.IntBetween(1, 5), Name: f.Person().Name()},
			CustomFields: []tracker.CustomField{
				customField(tracker.FieldSerialNumber, strings.ToUpper(f.RandomStringWithLength(10))),
				customField(tracker.FieldHostName, name+"."+f.Internet().Domain()),
				customField(tracker.FieldProgram, program),
				customField(tracker.FieldModel, models[f.IntBetween(0, len(models)-1)]),
				customField(tracker.FieldMACAddress, f.Internet().MacAddress()),
				customField(tracker.FieldType, typ.Name),
			},
		}
		if i > 0 && f.IntBetween(0, 3) == 0 {
			a.CustomFields = append(a.CustomFields, customField(tracker.FieldParent, ds.Assets[f.IntBetween(0, i-1)].Name))
		}
		if f.IntBetween(0, 2) == 0 {
			a.Tags = []string{f.Lorem().Word()}
		}
		ds.Assets = append(ds.Assets, a)
	}

	return ds, nil
}

func customField(field tracker.Field, value string) tracker.CustomField {
	cf, _ := field.CustomField()
	cf.Value = value
	return cf
}

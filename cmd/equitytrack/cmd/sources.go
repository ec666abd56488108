package cmd

import (
	"fmt"
	"strings"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"github.com/rustyeddy/equitytrack/config"
	"github.com/rustyeddy/equitytrack/source"
	"github.com/rustyeddy/equitytrack/source/alpaca"
	"github.com/rustyeddy/equitytrack/source/oanda"
)

// buildSource turns the configured sources into one Source, queried in
// config order.
func buildSource(cfg *config.Config) (source.Source, error) {
	var multi source.Multi
	for i, sc := range cfg.Sources {
		switch sc.Type {
		case config.SourceFile:
			multi = append(multi, source.File{Path: sc.Path})
		case config.SourceAlpaca:
			multi = append(multi, alpaca.NewProvider(alpacaapi.ClientOpts{}, sc.Name))
		case config.SourceOanda:
			if sc.Token == "" {
				return nil, fmt.Errorf("sources[%d]: oanda token missing (set %s)", i, config.EnvOandaToken)
			}
			practice := strings.ToLower(sc.Env) == "practice"
			multi = append(multi, &oanda.Source{
				Client:     oanda.NewClient(sc.Token, practice),
				AccountIDs: sc.AccountIDs,
			})
		default:
			return nil, fmt.Errorf("sources[%d]: unknown source type %q", i, sc.Type)
		}
	}
	if len(multi) == 1 {
		return multi[0], nil
	}
	return multi, nil
}

// Package fxrates читает резервный снимок справочных курсов из YAML файла.
package fxrates

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ignatzorin/tradehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tradehub-backend/internal/engine/fee"
)

// Snapshot: курсы на момент AsOf, в единицах валюты за 1 Base.
type Snapshot struct {
	Base  valueobject.Currency
	AsOf  time.Time
	Rates fee.RateTable
}

type fileFormat struct {
	Base  string            `yaml:"base"`
	AsOf  time.Time         `yaml:"as_of"`
	Rates map[string]string `yaml:"rates"`
}

// LoadFile читает снимок курсов из файла.
func LoadFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fxrates: не удалось открыть %s: %w", path, err)
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fxrates: %s: %w", path, err)
	}
	return snap, nil
}

// Decode разбирает YAML. Поддерживается только база USD, неизвестные валюты отклоняются.
func Decode(r io.Reader) (Snapshot, error) {
	var raw fileFormat
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return Snapshot{}, fmt.Errorf("не удалось разобрать yaml: %w", err)
	}

	base, err := valueobject.ParseCurrency(raw.Base)
	if err != nil {
		return Snapshot{}, err
	}
	if base != valueobject.USD {
		return Snapshot{}, fmt.Errorf("база %s не поддерживается, ожидается USD", base)
	}

	table := make(fee.RateTable, len(raw.Rates))
	for code, value := range raw.Rates {
		cur, err := valueobject.ParseCurrency(code)
		if err != nil {
			return Snapshot{}, err
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return Snapshot{}, fmt.Errorf("курс %s=%q: %w", code, value, err)
		}
		if !rate.IsPositive() {
			return Snapshot{}, fmt.Errorf("курс %s должен быть положительным", code)
		}
		table[cur] = rate
	}

	return Snapshot{Base: base, AsOf: raw.AsOf, Rates: table}, nil
}

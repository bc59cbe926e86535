// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/shenwei356/kgraph/kgraph/table"
)

// InfoFileExt is the file extension of the info file of a table.
const InfoFileExt = ".toml"

// TableInfo holds the summary of a k-mer table, saved in a TOML file
// next to the table.
type TableInfo struct {
	MainVersion  uint8  `toml:"main-version" comment:"Table format"`
	MinorVersion uint8  `toml:"minor-version"`
	Format       string `toml:"format" comment:"portable or raw"`

	K         int  `toml:"k" comment:"K-mers"`
	Tier      int  `toml:"tier"`
	Entries   int  `toml:"entries"`
	MinCount  int  `toml:"min-count"`
	Annotated bool `toml:"annotated"`

	InputFiles int `toml:"input-files" comment:"Input data"`
	Reads      int `toml:"reads"`
	Bases      int `toml:"bases"`
}

func infoFile(tableFile string) string {
	return tableFile + InfoFileExt
}

func newTableInfo(t *table.Table, raw bool) *TableInfo {
	format := "portable"
	if raw {
		format = "raw"
	}
	return &TableInfo{
		MainVersion:  table.MainVersion,
		MinorVersion: table.MinorVersion,
		Format:       format,
		K:            t.K(),
		Tier:         t.Tier(),
		Entries:      t.Size(),
	}
}

func readTableInfo(file string) (*TableInfo, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var info TableInfo
	if err = toml.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func writeTableInfo(file string, info *TableInfo) error {
	data, err := toml.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0644)
}

// Copyright 2024 The Castor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command castorctl is a developer CLI over the coordinator's gRPC
// surface, for local single-process clusters (SPEC_FULL.md §0): start a
// coordinator and worker with `castorctl up`, then submit statements to
// it with `castorctl query`.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/rpc"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "up":
		runUp(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: castorctl up                                    # one coordinator + N workers, in-process")
	fmt.Fprintln(os.Stderr, "       castorctl query -coordinator=host:port 'SELECT * FROM t'")
}

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	addr := fs.String("coordinator", "localhost:0", "coordinator gRPC address")
	catalogID := fs.Int64("catalog", catalog.RootCatalogID, "catalog id to plan against")
	timeout := fs.Duration("timeout", 30*time.Second, "query timeout")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	sql := fs.Arg(0)

	log := logrus.WithField("component", "castorctl")
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := rpc.DialCoordinator(ctx, *addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.WithError(err).Fatal("dialing coordinator")
	}
	defer client.Close()

	pages, err := client.Submit(ctx, sql, nil, *catalogID, nil)
	if err != nil {
		log.WithError(err).Fatal("submitting query")
	}

	printed := false
	for p := range pages {
		if p.Err != "" {
			log.WithField("err", p.Err).Fatal("query failed")
		}
		printBatch(p.Batch, &printed)
	}
}

// printBatch renders one result batch as a header (once) plus
// tab-separated rows, good enough for a developer CLI; castorctl is not
// a general-purpose client library.
func printBatch(batch *kernel.RecordBatch, printedHeader *bool) {
	if batch == nil {
		return
	}
	if !*printedHeader {
		fmt.Println(strings.Join(batch.ColumnNames(), "\t"))
		*printedHeader = true
	}
	for row := 0; row < batch.Len(); row++ {
		cells := make([]string, batch.NumColumns())
		for col, name := range batch.ColumnNames() {
			arr, _ := batch.Column(name)
			cells[col] = formatCell(arr, row)
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
}

func formatCell(arr kernel.Array, row int) string {
	if !arr.IsValid(row) {
		return "NULL"
	}
	switch a := arr.(type) {
	case *kernel.BoolArray:
		v, _ := a.Get(row)
		return fmt.Sprintf("%v", v)
	case *kernel.Int64Array:
		v, _ := a.Get(row)
		return fmt.Sprintf("%d", v)
	case *kernel.Float64Array:
		v, _ := a.Get(row)
		return fmt.Sprintf("%v", v)
	case *kernel.StringArray:
		v, _ := a.Get(row)
		return v
	default:
		return "?"
	}
}

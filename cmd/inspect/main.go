package main

import (
	"chatline/infrastructure/storage"
	"chatline/query"
	"flag"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	collection := flag.String("collection", query.CollectionMessages, "Collection to dump")
	flag.Parse()
	if err := query.CheckCollection(*collection); err != nil {
		log.Fatal(err)
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	records, err := storage.Scan(db, query.Query{Collection: *collection})
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Seq", "Fields"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, record := range records {
		table.Append([]string{record.ID, strconv.FormatUint(record.Seq, 10), renderFields(record.Fields)})
	}
	table.Render()
	fmt.Printf("%d document(s) in %s\n", len(records), *collection)
}

func renderFields(fields map[string]any) string {
	keys := lo.Keys(fields)
	slices.Sort(keys)
	return strings.Join(lo.Map(keys, func(k string, _ int) string {
		return k + "=" + renderValue(fields[k])
	}), " ")
}

func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case *timestamppb.Timestamp:
		return x.AsTime().Format(time.RFC3339Nano)
	case string:
		return strconv.Quote(x)
	default:
		return fmt.Sprint(x)
	}
}

// Command bbvgen records synthetic basic-block event streams into
// region-segmented basic-block vectors.
//
// Usage:
//
//	go run ./cmd/bbvgen run --workload phased --threshold 100000 --output phased.csv
//	go run ./cmd/bbvgen bench --csv
//	go run ./cmd/bbvgen config init session.json
package main

func main() {
	execute()
}

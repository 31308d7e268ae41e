// Command cassette inspects and converts recorded HTTP cassettes.
//
// Usage:
//
//	# List cassettes in a directory
//	cassette list --dir testdata/cassettes
//
//	# Show the interactions in a cassette
//	cassette show github/user --dir testdata/cassettes --bodies
//
//	# Copy a YAML cassette into a SQLite database
//	cassette convert github/user --dir testdata/cassettes --sqlite cassettes.db
//
//	# Copy it back
//	cassette convert github/user --dir testdata/cassettes --sqlite cassettes.db --reverse
package main

func main() {
	Execute()
}

// Command s3distversions restores a versioned S3 bucket to the state it had
// at a point in time.
package main

import "github.com/TheClimateCorporation/S3DistVersions/internal/cmd"

func main() {
	cmd.Execute()
}

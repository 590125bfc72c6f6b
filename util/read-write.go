package util

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"

	"go.uber.org/multierr"
)

// ReadWords returns the lines of a file
func ReadWords(path string) ([]string, error) {
	readFile, err := os.Open(path)
	if err != nil {
		return []string{}, err
	}

	defer readFile.Close()

	fileScanner := bufio.NewScanner(readFile)
	fileScanner.Split(bufio.ScanLines)

	var words []string
	for fileScanner.Scan() {
		words = append(words, fileScanner.Text())
	}

	return words, fileScanner.Err()
}

func WriteCSV(path string, data [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}

	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if err := csv.NewWriter(f).WriteAll(data); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	return nil
}

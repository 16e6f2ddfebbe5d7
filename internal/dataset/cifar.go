package dataset

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CIFAR batch files are flat sequences of fixed-size records. CIFAR-10
// records carry one label byte; CIFAR-100 records carry a coarse label byte
// followed by the fine label byte. Both are followed by 3072 pixel bytes.
const (
	cifar10Record  = 1 + ImageSize
	cifar100Record = 2 + ImageSize
)

// LoadCIFAR10 reads the CIFAR-10 binary distribution from root:
// data_batch_1.bin .. data_batch_5.bin for training and test_batch.bin for
// the test set.
func LoadCIFAR10(ctx context.Context, root string) (*Dataset, error) {
	ds := &Dataset{Name: "cifar10", Classes: 10}

	for i := 1; i <= 5; i++ {
		file := filepath.Join(root, fmt.Sprintf("data_batch_%d.bin", i))
		samples, err := readBatchFile(ctx, file, 1, 0, 10)
		if err != nil {
			return nil, err
		}
		ds.Train = append(ds.Train, samples...)
	}

	test, err := readBatchFile(ctx, filepath.Join(root, "test_batch.bin"), 1, 0, 10)
	if err != nil {
		return nil, err
	}
	ds.Test = test
	return ds, nil
}

// LoadCIFAR100 reads the CIFAR-100 binary distribution from root: train.bin
// and test.bin. The fine label (the second label byte) is used as the class.
func LoadCIFAR100(ctx context.Context, root string) (*Dataset, error) {
	ds := &Dataset{Name: "cifar100", Classes: 100}

	train, err := readBatchFile(ctx, filepath.Join(root, "train.bin"), 2, 1, 100)
	if err != nil {
		return nil, err
	}
	ds.Train = train

	test, err := readBatchFile(ctx, filepath.Join(root, "test.bin"), 2, 1, 100)
	if err != nil {
		return nil, err
	}
	ds.Test = test
	return ds, nil
}

// LoadSVHN reads the cropped-digits SVHN set converted to CIFAR-10 style
// binary records (one label byte, 0-9, then 3072 pixel bytes) as train.bin
// and test.bin under root.
func LoadSVHN(ctx context.Context, root string) (*Dataset, error) {
	ds := &Dataset{Name: "svhn", Classes: 10}

	train, err := readBatchFile(ctx, filepath.Join(root, "train.bin"), 1, 0, 10)
	if err != nil {
		return nil, err
	}
	ds.Train = train

	test, err := readBatchFile(ctx, filepath.Join(root, "test.bin"), 1, 0, 10)
	if err != nil {
		return nil, err
	}
	ds.Test = test
	return ds, nil
}

// readBatchFile decodes one binary batch file. labelBytes is the number of
// label bytes preceding the pixels and labelIndex selects which of them is
// the class label.
func readBatchFile(ctx context.Context, path string, labelBytes, labelIndex, classes int) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening batch file %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	recordSize := labelBytes + ImageSize
	if info.Size()%int64(recordSize) != 0 {
		return nil, errors.Errorf("batch file %s has size %d, not a multiple of the %d-byte record", path, info.Size(), recordSize)
	}

	r := bufio.NewReaderSize(f, 1<<20)
	record := make([]byte, recordSize)
	samples := make([]Sample, 0, info.Size()/int64(recordSize))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, record); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "reading record %d from %s", len(samples), path)
		}

		label := int(record[labelIndex])
		if label >= classes {
			return nil, errors.Errorf("record %d in %s has label %d, want < %d", len(samples), path, label, classes)
		}

		image := make([]float64, ImageSize)
		for i, b := range record[labelBytes:] {
			image[i] = float64(b) / 255
		}
		samples = append(samples, Sample{Image: image, Label: label})
	}

	if len(samples) == 0 {
		return nil, errors.Errorf("batch file %s contains no records", path)
	}
	return samples, nil
}

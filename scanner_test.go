package rarstream

import "testing"

func TestScanDetectsCrossVolumeContinuation(t *testing.T) {
	var vol1 []byte
	vol1 = append(vol1, sig50...)
	vol1 = append(vol1, buildRar5FileBlockFlags("big.bin", []byte("first-half"), hflagData|0x0010)...) // HFL_SPLIT_AFTER

	var vol2 []byte
	vol2 = append(vol2, sig50...)
	vol2 = append(vol2, buildRar5FileBlockFlags("big.bin", []byte("second-half"), hflagData|0x0008)...) // HFL_SPLIT_BEFORE
	vol2 = append(vol2, buildRar5EndBlock()...)

	vols := []VolumeSource{
		&memVolume{name: "big.part1.rar", data: vol1},
		&memVolume{name: "big.part2.rar", data: vol2},
	}
	vs, err := newVolumeSet(vols)
	if err != nil {
		t.Fatal(err)
	}
	frags, err := newScanner(vs).Scan()
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 2 {
		t.Fatalf("len(frags) = %d, want 2", len(frags))
	}
	if !frags[0].splitAfter || frags[0].fileName != "big.bin" {
		t.Fatalf("frags[0] = %+v, want splitAfter on big.bin", frags[0])
	}
	if !frags[1].splitBefore || frags[1].fileName != "big.bin" {
		t.Fatalf("frags[1] = %+v, want splitBefore on big.bin", frags[1])
	}
}

func TestScanRejectsDiscontinuousVolumeByName(t *testing.T) {
	var vol1 []byte
	vol1 = append(vol1, sig50...)
	vol1 = append(vol1, buildRar5FileBlockFlags("big.bin", []byte("first-half"), hflagData|0x0010)...)

	var vol2 []byte
	vol2 = append(vol2, sig50...)
	// Wrong name: the continuation must match "big.bin", not "other.bin".
	vol2 = append(vol2, buildRar5FileBlockFlags("other.bin", []byte("oops"), hflagData|0x0008)...)
	vol2 = append(vol2, buildRar5EndBlock()...)

	vols := []VolumeSource{
		&memVolume{name: "big.part1.rar", data: vol1},
		&memVolume{name: "big.part2.rar", data: vol2},
	}
	vs, err := newVolumeSet(vols)
	if err != nil {
		t.Fatal(err)
	}
	_, err = newScanner(vs).Scan()
	if err == nil {
		t.Fatal("expected ErrVolumeDiscontinuity")
	}
}

func TestScanRejectsDiscontinuousVolumeMissingSplitBefore(t *testing.T) {
	var vol1 []byte
	vol1 = append(vol1, sig50...)
	vol1 = append(vol1, buildRar5FileBlockFlags("big.bin", []byte("first-half"), hflagData|0x0010)...)

	var vol2 []byte
	vol2 = append(vol2, sig50...)
	// Same name, but missing the HFL_SPLIT_BEFORE flag.
	vol2 = append(vol2, buildRar5FileBlockFlags("big.bin", []byte("second-half"), hflagData)...)
	vol2 = append(vol2, buildRar5EndBlock()...)

	vols := []VolumeSource{
		&memVolume{name: "big.part1.rar", data: vol1},
		&memVolume{name: "big.part2.rar", data: vol2},
	}
	vs, err := newVolumeSet(vols)
	if err != nil {
		t.Fatal(err)
	}
	_, err = newScanner(vs).Scan()
	if err == nil {
		t.Fatal("expected ErrVolumeDiscontinuity")
	}
}

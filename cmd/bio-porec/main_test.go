package main

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/porec/annotate"
	"github.com/grailbio/porec/concatemer"
	"github.com/grailbio/porec/digest"
	"github.com/grailbio/porec/encoding/fastq"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
	"v.io/x/lib/cmdline"
)

const testFASTQ = `@c0 runid=1 ch=7
AAAGATCAAAAGATCAAAAA
+
IIIIIIIIIIIIIIIIIIII
@c1
CCCCCCCCCC
+
##########
@c2
AAGATCTT
+
IIIIIIII
`

func writeFile(t *testing.T, path, data string) {
	require.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
}

func readFASTQ(t *testing.T, path string) []fastq.Read {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, _ := compress.NewReader(f)
	sc := fastq.NewScanner(r, fastq.All)
	var reads []fastq.Read
	var read fastq.Read
	for sc.Scan(&read) {
		reads = append(reads, read)
	}
	require.NoError(t, sc.Err())
	return reads
}

func readRecords(t *testing.T, path string) (*sam.Header, []*sam.Record) {
	ctx := vcontext.Background()
	in, err := openInput(ctx, path)
	require.NoError(t, err)
	r, err := newRecordReader(in, 1)
	require.NoError(t, err)
	var recs []*sam.Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	require.NoError(t, in.close(ctx))
	return r.Header(), recs
}

func TestGuessFileType(t *testing.T) {
	for path, want := range map[string]fileType{
		"-":               fastqType,
		"a.fastq":         fastqType,
		"a.FQ":            fastqType,
		"s3://b/a.fq.gz":  fastqGzipType,
		"a.fastq.gz":      fastqGzipType,
		"a.sam":           samType,
		"a.bam":           bamType,
		"a.txt":           unknownType,
		"a.bam.bai":       unknownType,
		"a.fastq.gz.part": unknownType,
	} {
		expect.EQ(t, guessFileType(path), want, path)
	}
}

func TestDigestFASTQ(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	inPath := filepath.Join(tmpDir, "reads.fastq")
	writeFile(t, inPath, testFASTQ)

	for _, outName := range []string{"monomers.fastq", "monomers.fq.gz"} {
		outPath := filepath.Join(tmpDir, outName)
		flags := digestFlags{opts: digest.DefaultOpts}
		assert.NoError(t, runDigest(ctx, flags, inPath, "DpnII", outPath))
		reads := readFASTQ(t, outPath)
		var names, seqs []string
		for _, r := range reads {
			names = append(names, r.Name())
			seqs = append(seqs, r.Seq)
		}
		expect.EQ(t, names, []string{"c0:0", "c0:1", "c0:2", "c1:0", "c2:0", "c2:1"})
		expect.EQ(t, seqs, []string{"AAA", "GATCAAAA", "GATCAAAAA", "CCCCCCCCCC", "AA", "GATCTT"})
		expect.EQ(t, reads[1].ID, "@c0:1\tMI:Z:c0\tXc:B:i,3,11,20,1,3")
		expect.EQ(t, reads[3].Qual, "##########")
	}
}

func TestDigestMarkers(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	inPath := filepath.Join(tmpDir, "reads.fastq")
	writeFile(t, inPath, testFASTQ)
	markerPath := filepath.Join(tmpDir, "markers.txt")
	writeFile(t, markerPath, "# barcodes\nCCCC^CC\n")
	outPath := filepath.Join(tmpDir, "out.fastq")

	flags := digestFlags{opts: digest.DefaultOpts}
	assert.NoError(t, runDigest(ctx, flags, inPath, markerPath, outPath))
	reads := readFASTQ(t, outPath)
	require.Equal(t, 4, len(reads))
	expect.EQ(t, reads[1].Seq, "CCCC")
	expect.EQ(t, reads[2].Seq, "CCCCCC")

	err := runDigest(ctx, flags, inPath, "NoSuchEnzyme", outPath)
	require.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "unknown enzyme")

	err = runDigest(ctx, flags, inPath, "DpnII", filepath.Join(tmpDir, "out.txt"))
	require.NotNil(t, err)
}

func TestDigestSAM(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	rg, err := sam.NewAux(sam.NewTag("RG"), "rg1")
	require.NoError(t, err)
	mm, err := sam.NewAux(sam.NewTag("MM"), "A+a,4;")
	require.NoError(t, err)
	ml, err := sam.NewAux(sam.NewTag("ML"), []uint8{200})
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, nil)
	require.NoError(t, err)
	inPath := filepath.Join(tmpDir, "reads.bam")
	out, err := createOutput(ctx, inPath)
	require.NoError(t, err)
	w, err := out.recordWriter(h, 1)
	require.NoError(t, err)
	require.NoError(t, w.Write(&sam.Record{
		Name:      "c0",
		Pos:       -1,
		MatePos:   -1,
		Flags:     sam.Unmapped,
		Seq:       sam.NewSeq([]byte("AAAGATCAAAAGATCAAAAA")),
		Qual:      bytes.Repeat([]byte{20}, 20),
		AuxFields: []sam.Aux{rg, mm, ml},
	}))
	require.NoError(t, out.close(ctx))

	outPath := filepath.Join(tmpDir, "monomers.sam")
	flags := digestFlags{opts: digest.DefaultOpts, removeTags: "MM,ML"}
	require.NoError(t, runDigest(ctx, flags, inPath, "dpnii", outPath))

	header, recs := readRecords(t, outPath)
	require.Equal(t, 3, len(recs))
	expect.EQ(t, len(header.Progs()), 1)
	for i, r := range recs {
		coords, found, err := concatemer.CoordsFromRecord(r)
		require.NoError(t, err)
		expect.True(t, found)
		expect.EQ(t, coords.Ordinal, i)
		expect.True(t, r.AuxFields.Get(sam.NewTag("MM")) == nil)
		expect.EQ(t, r.AuxFields.Get(sam.NewTag("RG")).Value(), "rg1")
	}

	// Without -remove-tags the single A+a call lands in the middle monomer.
	outPath = filepath.Join(tmpDir, "monomers.bam")
	flags.removeTags = ""
	require.NoError(t, runDigest(ctx, flags, inPath, "dpnii", outPath))
	_, recs = readRecords(t, outPath)
	require.Equal(t, 3, len(recs))
	for i, want := range []string{"A+a;", "A+a,1;", "A+a;"} {
		expect.EQ(t, recs[i].AuxFields.Get(sam.NewTag("MM")).Value(), want)
	}
	expect.True(t, recs[0].AuxFields.Get(sam.NewTag("ML")) == nil)
	expect.EQ(t, recs[1].AuxFields.Get(sam.NewTag("ML")).Value(), []uint8{200})
}

func TestDigestDirectory(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	inDir := filepath.Join(tmpDir, "run1")
	require.NoError(t, os.MkdirAll(filepath.Join(inDir, "pass", "batch0"), 0755))
	writeFile(t, filepath.Join(inDir, "pass", "b.fastq"), "@b0\nAAGATCTT\n+\nIIIIIIII\n")
	writeFile(t, filepath.Join(inDir, "pass", "batch0", "c.fastq"), "@c0\nCCCC\n+\nIIII\n")
	writeFile(t, filepath.Join(inDir, "a.fastq"), "@a0\nGGGG\n+\nIIII\n")
	writeFile(t, filepath.Join(inDir, "a.fq"), "@skipped\nGGGG\n+\nIIII\n")
	writeFile(t, filepath.Join(inDir, "summary.txt"), "not reads\n")
	outPath := filepath.Join(tmpDir, "out.fastq")

	names := func() []string {
		var names []string
		for _, r := range readFASTQ(t, outPath) {
			names = append(names, r.Name())
		}
		return names
	}

	flags := digestFlags{opts: digest.DefaultOpts, glob: "*.fastq", recursive: true}
	require.NoError(t, runDigest(ctx, flags, inDir, "DpnII", outPath))
	expect.EQ(t, names(), []string{"a0:0", "b0:0", "b0:1", "c0:0"})

	flags.recursive = false
	require.NoError(t, runDigest(ctx, flags, inDir, "DpnII", outPath))
	expect.EQ(t, names(), []string{"a0:0"})

	flags.glob = ""
	require.NoError(t, runDigest(ctx, flags, inDir, "DpnII", outPath))
	expect.EQ(t, names(), []string{"a0:0", "skipped:0"})

	flags.glob = "*.bam"
	err := runDigest(ctx, flags, inDir, "DpnII", outPath)
	require.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "found no")

	// A directory mixing FASTQ and SAM is rejected.
	writeFile(t, filepath.Join(inDir, "x.sam"), "@HD\tVN:1.6\n")
	flags.glob = ""
	err = runDigest(ctx, flags, inDir, "DpnII", outPath)
	require.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "only FASTQ")

	paths, err := listInputs(ctx, filepath.Join(tmpDir, "missing"), "*.fastq", true)
	expect.Nil(t, paths)
	require.NotNil(t, err)
}

// align places the monomer records of a digested SAM file on chr1, one
// every 1000 bases, except ordinal 1 of every read, which stays unmapped.
func align(t *testing.T, ctx context.Context, inPath, outPath string) {
	_, recs := readRecords(t, inPath)
	chr1, err := sam.NewReference("chr1", "", "", 100000, nil, nil)
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{chr1})
	require.NoError(t, err)
	out, err := createOutput(ctx, outPath)
	require.NoError(t, err)
	w, err := out.recordWriter(h, 1)
	require.NoError(t, err)
	for i, r := range recs {
		_, ordinal, err := concatemer.ParseMonomerID(r.Name)
		require.NoError(t, err)
		if ordinal != 1 {
			r.Flags = 0
			r.Ref = chr1
			r.Pos = 1000 * i
			r.MapQ = 60
			r.Cigar = sam.Cigar{sam.NewCigarOp(sam.CigarMatch, r.Seq.Length)}
		}
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, out.close(ctx))
}

func TestDigestAnnotate(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	fastqPath := filepath.Join(tmpDir, "reads.fastq")
	writeFile(t, fastqPath, testFASTQ)
	monomerPath := filepath.Join(tmpDir, "monomers.sam")
	require.NoError(t, runDigest(ctx, digestFlags{opts: digest.DefaultOpts}, fastqPath, "DpnII", monomerPath))
	alignedPath := filepath.Join(tmpDir, "aligned.sam")
	align(t, ctx, monomerPath, alignedPath)

	walkPath := filepath.Join(tmpDir, "walks.bam")
	flags := annotateFlags{opts: annotate.DefaultOpts, tieBreak: "first", parallelism: 2}
	require.NoError(t, runAnnotate(ctx, flags, alignedPath, walkPath))

	_, recs := readRecords(t, walkPath)
	require.Equal(t, 6, len(recs))
	want := []string{
		"chr1:0-3:+,.,chr1:2000-2009:+",
		"chr1:0-3:+,.,chr1:2000-2009:+",
		"chr1:0-3:+,.,chr1:2000-2009:+",
		"chr1:3000-3010:+",
		"chr1:4000-4002:+,.",
		"chr1:4000-4002:+,.",
	}
	for i, r := range recs {
		w, ok := r.AuxFields.Get(annotate.WalkTag).Value().(string)
		expect.True(t, ok)
		expect.EQ(t, w, want[i], r.Name)
	}

	// Annotating the annotated output again changes nothing.
	againPath := filepath.Join(tmpDir, "again.bam")
	require.NoError(t, runAnnotate(ctx, flags, walkPath, againPath))
	_, again := readRecords(t, againPath)
	require.Equal(t, len(recs), len(again))
	for i := range recs {
		expect.EQ(t, again[i].AuxFields, recs[i].AuxFields)
	}
}

func TestAnnotateFailures(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	inPath := filepath.Join(tmpDir, "in.sam")
	writeFile(t, inPath, strings.Join([]string{
		"@SQ\tSN:chr1\tLN:1000",
		"a:0\t0\tchr1\t11\t60\t5M\t*\t0\t0\tACGTA\t*\tMI:Z:a\tXc:B:i,0,5,5,0,1",
		"b:0\t0\tchr1\t21\t60\t5M\t*\t0\t0\tACGTA\t*\tMI:Z:b",
		"c:0\t4\t*\t0\t0\t*\t*\t0\t0\tACGTA\t*\tMI:Z:c\tXc:B:i,0,5,5,0,1",
	}, "\n")+"\n")
	outPath := filepath.Join(tmpDir, "out.sam")
	failuresPath := filepath.Join(tmpDir, "failures.tsv")

	flags := annotateFlags{opts: annotate.DefaultOpts, failuresPath: failuresPath}
	err := runAnnotate(ctx, flags, inPath, outPath)
	require.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "1 of 3 concatemers")

	data, err := ioutil.ReadFile(failuresPath)
	require.NoError(t, err)
	expect.HasSubstr(t, string(data), "b\t1\t")

	flags.allowFailedGroups = true
	require.NoError(t, runAnnotate(ctx, flags, inPath, outPath))
	_, recs := readRecords(t, outPath)
	require.Equal(t, 2, len(recs))
	expect.EQ(t, recs[0].AuxFields.Get(annotate.WalkTag).Value(), "chr1:10-15:+")
	expect.EQ(t, recs[1].AuxFields.Get(annotate.WalkTag).Value(), ".")

	flags.tieBreak = "best"
	expect.NotNil(t, runAnnotate(ctx, flags, inPath, outPath))
}

func TestEnzymesCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	env := &cmdline.Env{Stdout: &stdout, Stderr: &stderr}
	require.NoError(t, cmdline.ParseAndRun(newCmdRoot(), env, []string{"enzymes"}))
	expect.HasSubstr(t, stdout.String(), "DpnII\t^GATC\n")
	expect.HasSubstr(t, stdout.String(), "NlaIII\tCATG^\n")

	err := cmdline.ParseAndRun(newCmdRoot(), env, []string{"digest", "only-one-arg"})
	expect.NotNil(t, err)
}

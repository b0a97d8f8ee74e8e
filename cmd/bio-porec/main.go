// bio-porec digests Pore-C concatemer reads into monomers and annotates the
// alignments of the monomers with the walk of their concatemer.
//
// Usage:
//
//	bio-porec digest [flags] input enzymes-or-marker-file output
//	bio-porec annotate [flags] input output
//	bio-porec enzymes
//
// A typical pipeline digests reads, aligns the monomers with
// "minimap2 -y" so that the MI and Xc tags reach the alignments, and then
// annotates the alignments:
//
//	bio-porec digest reads.fastq.gz DpnII monomers.fastq.gz
//	minimap2 -ay -x map-ont ref.mmi monomers.fastq.gz > monomers.sam
//	bio-porec annotate monomers.sam walks.bam
package main

import (
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"v.io/x/lib/cmdline"
)

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-porec",
		Short:    "Pore-C concatemer digestion and walk annotation",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdDigest(),
			newCmdAnnotate(),
			newCmdEnzymes(),
		},
	}
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	shutdown := grail.Init()
	env := cmdline.EnvFromOS()
	err := cmdline.ParseAndRun(newCmdRoot(), env, os.Args[1:])
	shutdown()
	os.Exit(cmdline.ExitCode(err, env.Stderr))
}

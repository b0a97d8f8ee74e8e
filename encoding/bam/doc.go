// Package bam provides helpers that augment the record types of
// github.com/grailbio/hts/sam: flag categories and aux-tag access shared by
// digestion and annotation.
package bam

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/haierkeys/fast-note-anchor/pkg/digest"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ErrDigestMismatch content no longer matches the anchored hash
// ErrDigestMismatch 内容与已锚定的哈希不一致
var ErrDigestMismatch = errors.New("content does not match hash")

type digestFlags struct {
	file string // Read content from file, "-" for stdin // 从文件读取内容，"-" 表示标准输入
	hash string // Anchored hash to compare with // 需要比对的已锚定哈希
}

func newDigestCmd() *cobra.Command {
	flags := new(digestFlags)

	digestCommand := &cobra.Command{
		Use:   "digest [content] [-f file]",
		Short: "Print the SHA-256 content hash of a note // 输出笔记内容的 SHA-256 摘要",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readDigestInput(cmd, flags, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), digest.Digest(content))
			return nil
		},
	}
	digestCommand.PersistentFlags().StringVarP(&flags.file, "file", "f", "", "read content from file, - for stdin")

	verifyCommand := &cobra.Command{
		Use:   "verify [content] [-f file] --hash <hash>",
		Short: "Check content against an anchored hash // 校验内容是否与已锚定哈希一致",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readDigestInput(cmd, flags, args)
			if err != nil {
				return err
			}
			computed := digest.Digest(content)
			out := cmd.OutOrStdout()
			if !digest.Verify(content, flags.hash) {
				fmt.Fprintf(out, "modified\ncomputed: %s\nanchored: %s\n", computed, flags.hash)
				return ErrDigestMismatch
			}
			fmt.Fprintf(out, "intact\n%s\n", computed)
			return nil
		},
	}
	verifyCommand.Flags().StringVar(&flags.hash, "hash", "", "anchored content hash")
	_ = verifyCommand.MarkFlagRequired("hash")

	digestCommand.AddCommand(verifyCommand)
	return digestCommand
}

// readDigestInput 内容来自参数或 -f 指定的文件，二者只能选其一
func readDigestInput(cmd *cobra.Command, flags *digestFlags, args []string) (string, error) {
	switch {
	case flags.file != "" && len(args) > 0:
		return "", errors.New("pass content or --file, not both")
	case flags.file == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errors.Wrap(err, "read stdin")
		}
		return string(b), nil
	case flags.file != "":
		b, err := os.ReadFile(flags.file)
		if err != nil {
			return "", errors.Wrap(err, "read content file")
		}
		return string(b), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", errors.New("content or --file is required")
	}
}

func init() {
	rootCmd.AddCommand(newDigestCmd())
}

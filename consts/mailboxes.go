package consts

// MailboxDelimiter separates the levels of a mailbox hierarchy.
const MailboxDelimiter = '/'

// MaxMailboxNameLength is the longest mailbox name accepted, in bytes.
const MaxMailboxNameLength = 255

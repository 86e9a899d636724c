package utils

//AllowedVideoExtensions are the upload extensions a session can be started from, lower case without the dot
var AllowedVideoExtensions = []string{"mp4", "avi", "mov", "mkv"}

//DefaultMaxUploadBytes caps a single uploaded video (500MB)
const DefaultMaxUploadBytes = 500 << 20

//UploadPrefixLength is the length of the random prefix added to stored upload names
const UploadPrefixLength = 8
